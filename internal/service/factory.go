package service

import (
	"log/slog"

	"tecbrilho.app/erika/core/config"
)

type Services struct {
	conversation *ConversationService
	reactivation *ReactivationService
}

type ServicesConfig struct {
	Normalizer  Normalizer
	Assistant   AssistantGateway
	Interpreter ActionInterpreter
	Leads       LeadLister
	Config      config.Config
	Logger      *slog.Logger
}

func NewServices(cfg ServicesConfig) *Services {
	return &Services{
		conversation: NewConversationService(cfg.Normalizer, cfg.Assistant, cfg.Interpreter, cfg.Logger),
		reactivation: NewReactivationService(cfg.Leads, cfg.Assistant, cfg.Interpreter, cfg.Config.Reactivation, cfg.Logger),
	}
}

func (s *Services) Conversation() *ConversationService {
	return s.conversation
}

func (s *Services) Reactivation() *ReactivationService {
	return s.reactivation
}
