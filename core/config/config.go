package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	OTel         OTelConfig
	OpenAI       OpenAIConfig
	Kommo        KommoConfig
	Reactivation ReactivationConfig
	Phone        PhoneConfig
	Env          string
	Port         string
	CronSecret   string
}

type OTelConfig struct {
	Endpoint       string
	Headers        string
	ServiceName    string
	ServiceVersion string
}

type OpenAIConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	SystemPrompt   string
	TimeoutSeconds int
}

type KommoConfig struct {
	// Domain is the account base URL, e.g. https://tecbrilho.kommo.com.
	Domain string
	Token  string
	// Subdomain is the allow-listed account subdomain. Derived from Domain
	// when not set explicitly; empty disables the check.
	Subdomain string
	// Stages maps human-readable pipeline stage names to Kommo status ids.
	// Lookups are case-sensitive exact matches; unknown names are no-ops.
	Stages StageCatalog
	// SalesbotID is the bot launched for outbound reactivation messages.
	SalesbotID int64
}

type ReactivationConfig struct {
	// StatusID filters which pipeline stage the batch pulls leads from.
	StatusID  int64
	BatchSize int
	// Prompt is the synthetic customer message fed to the assistant for each
	// reactivated lead.
	Prompt string
}

type PhoneConfig struct {
	// CountryCode is prepended to national numbers during normalization.
	CountryCode string
}

// StageCatalog is the read-only stage-name → status-id mapping loaded once at
// startup from KOMMO_STAGE_MAP.
type StageCatalog map[string]int64

// Resolve returns the Kommo status id for a stage name. ok is false for names
// with no catalog entry.
func (c StageCatalog) Resolve(name string) (int64, bool) {
	id, ok := c[name]
	return id, ok
}

// Load builds the immutable service configuration from the environment.
// In development it first loads .env via godotenv.
func Load() (Config, error) {
	if getEnv("ERIKA_ENV", "development") == "development" {
		_ = godotenv.Load(".env")
	}

	cfg := Config{
		Env:        getEnv("ERIKA_ENV", "development"),
		Port:       getEnv("PORT", "8080"),
		CronSecret: getEnv("CRON_SECRET", ""),
		OTel: OTelConfig{
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:        getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "erika"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
		},
		OpenAI: OpenAIConfig{
			APIKey:         getEnv("OPENAI_API_KEY", ""),
			BaseURL:        getEnv("OPENAI_BASE_URL", ""),
			Model:          getEnv("OPENAI_MODEL", "gpt-4.1-mini"),
			SystemPrompt:   getEnv("ERIKA_PROMPT", defaultPrompt),
			TimeoutSeconds: getEnvInt("OPENAI_TIMEOUT_SECONDS", 60),
		},
		Kommo: KommoConfig{
			Domain:     strings.TrimRight(getEnv("KOMMO_DOMAIN", ""), "/"),
			Token:      getEnv("KOMMO_TOKEN", ""),
			Subdomain:  getEnv("KOMMO_SUBDOMAIN", ""),
			SalesbotID: getEnvInt64("KOMMO_SALESBOT_ID", 0),
		},
		Reactivation: ReactivationConfig{
			StatusID:  getEnvInt64("REACTIVATION_STATUS_ID", 0),
			BatchSize: getEnvInt("REACTIVATION_BATCH_SIZE", 5),
			Prompt:    getEnv("REACTIVATION_PROMPT", defaultReactivationPrompt),
		},
		Phone: PhoneConfig{
			CountryCode: getEnv("DEFAULT_COUNTRY_CODE", "55"),
		},
	}

	if cfg.OpenAI.APIKey == "" {
		return Config{}, fmt.Errorf("OPENAI_API_KEY is required")
	}

	if cfg.Kommo.Subdomain == "" && cfg.Kommo.Domain != "" {
		cfg.Kommo.Subdomain = subdomainOf(cfg.Kommo.Domain)
	}

	stages, err := parseStageMap(getEnv("KOMMO_STAGE_MAP", ""))
	if err != nil {
		return Config{}, fmt.Errorf("parsing KOMMO_STAGE_MAP: %w", err)
	}
	cfg.Kommo.Stages = stages

	return cfg, nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

func (c KommoConfig) Enabled() bool {
	return c.Domain != "" && c.Token != ""
}

func (c ReactivationConfig) Enabled() bool {
	return c.StatusID != 0
}

// subdomainOf extracts "tecbrilho" from "https://tecbrilho.kommo.com".
func subdomainOf(domain string) string {
	host := domain
	if i := strings.Index(host, "//"); i >= 0 {
		host = host[i+2:]
	}
	if i := strings.IndexByte(host, '.'); i >= 0 {
		return host[:i]
	}
	return host
}

func parseStageMap(raw string) (StageCatalog, error) {
	if raw == "" {
		return StageCatalog{}, nil
	}
	var stages StageCatalog
	if err := json.Unmarshal([]byte(raw), &stages); err != nil {
		return nil, err
	}
	return stages, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}

const defaultPrompt = `Você é Erika, Agente Oficial da TecBrilho, especialista em estética automotiva,
vendedora consultiva, organizadora de agenda e relacionamento com clientes.
Fale sempre em português do Brasil, com mensagens curtas (1–2 frases).
Nunca invente serviços, nomes ou valores. Sempre peça nome e modelo do carro no
início do atendimento e conduza o cliente até o agendamento ou próximo passo.

Quando quiser registrar uma decisão interna, termine a resposta com um bloco:
### ERIKA_ACTION
{"summary_note": "...", "suggested_stage": "...", "reactivate": false}
### END_ERIKA_ACTION
O bloco é invisível para o cliente e todos os campos são opcionais.`

const defaultReactivationPrompt = `O cliente está sem responder há alguns dias.
Escreva uma mensagem curta e simpática para reengajar a conversa.`
