package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ConfigKey is the fixed key of the singleton configuration record.
const ConfigKey = "main"

const (
	WhatsAppBaileys = "baileys"
	WhatsAppWeb     = "whatsapp-web"

	DefaultWebhookURL   = "http://localhost:3333/send-whatsapp"
	DefaultReminderTime = "08:00"
)

// DefaultCategories is the category list of a fresh installation.
var DefaultCategories = []string{
	"Salário",
	"Investimentos",
	"Alimentação",
	"Moradia",
	"Transporte",
	"Lazer",
	"Saúde",
	"Educação",
	"Outros",
}

type (
	EmailSettings struct {
		ServiceID  string `json:"emailService" validate:"max=120"`
		TemplateID string `json:"emailTemplate" validate:"max=120"`
		PublicKey  string `json:"emailPublic" validate:"max=200"`
		PrivateKey string `json:"emailPrivate" validate:"max=200"`
	}

	WhatsAppSettings struct {
		Number     string `json:"whatsNumero" validate:"max=30"`
		Method     string `json:"whatsMetodo" validate:"omitempty,oneof=baileys whatsapp-web"`
		WebhookURL string `json:"webhookUrl" validate:"omitempty,url"`
	}

	NotificationSettings struct {
		DueDates          bool   `json:"notificarVencimentos"`
		Goals             bool   `json:"notificarObjetivos"`
		ReminderTime      string `json:"lembreteHorario" validate:"hhmm"`
		PermissionGranted bool   `json:"permissaoNotificacoes"`
	}

	// Configuration is the single per-installation settings record.
	Configuration struct {
		Theme           string               `json:"theme" validate:"omitempty,oneof=light dark"`
		UserName        string               `json:"nomeUsuario" validate:"max=120"`
		SavingsGoal     decimal.Decimal      `json:"metaEconomia" validate:"gte=0"`
		GoalDescription string               `json:"objetivoDescricao" validate:"max=200"`
		GoalTarget      decimal.Decimal      `json:"objetivoValor" validate:"gte=0"`
		Categories      []string             `json:"categorias"`
		Email           EmailSettings        `json:"email"`
		WhatsApp        WhatsAppSettings     `json:"whatsapp"`
		ShareURL        string               `json:"shareUrl" validate:"omitempty,url"`
		Notifications   NotificationSettings `json:"notificacoes"`
	}
)

// DefaultConfiguration returns the settings of a fresh installation.
func DefaultConfiguration() Configuration {
	cats := make([]string, len(DefaultCategories))
	copy(cats, DefaultCategories)
	return Configuration{
		Theme:       "light",
		SavingsGoal: decimal.Zero,
		GoalTarget:  decimal.Zero,
		Categories:  cats,
		WhatsApp: WhatsAppSettings{
			Method:     WhatsAppBaileys,
			WebhookURL: DefaultWebhookURL,
		},
		Notifications: NotificationSettings{
			ReminderTime: DefaultReminderTime,
		},
	}
}

// Normalize trims free text and fills empty fields with defaults.
func (c *Configuration) Normalize() {
	def := DefaultConfiguration()
	c.Theme = strings.TrimSpace(c.Theme)
	if c.Theme == "" {
		c.Theme = def.Theme
	}
	c.UserName = strings.TrimSpace(c.UserName)
	c.GoalDescription = strings.TrimSpace(c.GoalDescription)
	c.ShareURL = strings.TrimSpace(c.ShareURL)
	c.WhatsApp.Number = strings.TrimSpace(c.WhatsApp.Number)
	c.WhatsApp.WebhookURL = strings.TrimSpace(c.WhatsApp.WebhookURL)
	if c.WhatsApp.Method == "" {
		c.WhatsApp.Method = def.WhatsApp.Method
	}
	if c.Notifications.ReminderTime == "" {
		c.Notifications.ReminderTime = def.Notifications.ReminderTime
	}

	cats := c.Categories[:0]
	seen := make(map[string]bool, len(c.Categories))
	for _, cat := range c.Categories {
		cat = strings.TrimSpace(cat)
		key := strings.ToLower(cat)
		if cat == "" || seen[key] {
			continue
		}
		seen[key] = true
		cats = append(cats, cat)
	}
	if len(cats) == 0 {
		cats = def.Categories
	}
	c.Categories = cats
}

func (c Configuration) Validate() error {
	return Validate(c)
}

// EmailConfigured reports whether the service and template identifiers are set.
func (c Configuration) EmailConfigured() bool {
	return strings.TrimSpace(c.Email.ServiceID) != "" && strings.TrimSpace(c.Email.TemplateID) != ""
}
