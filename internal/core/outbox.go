package core

import "time"

type (
	// EmailPayload is the template parameter set sent with every report email.
	EmailPayload struct {
		User    string `json:"user"`
		Summary string `json:"resumo"`
		PDF     string `json:"pdf"`
	}

	// EmailJob carries everything needed to retry a send later, credentials included.
	EmailJob struct {
		ServiceID  string       `json:"serviceId"`
		TemplateID string       `json:"templateId"`
		PublicKey  string       `json:"publicKey"`
		PrivateKey string       `json:"privateKey"`
		Payload    EmailPayload `json:"payload"`
	}

	QueuedEmail struct {
		ID        int64     `json:"id"`
		Job       EmailJob  `json:"job"`
		Attempts  int       `json:"attempts"`
		LastError string    `json:"lastError,omitempty"`
		CreatedAt time.Time `json:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt"`
	}

	User struct {
		ID             int64     `json:"id"`
		Name           string    `json:"name"`
		Email          string    `json:"email"`
		PasswordHash   string    `json:"-"`
		IsAdmin        bool      `json:"isAdmin"`
		ResetCodeHash  string    `json:"-"`
		ResetExpiresAt time.Time `json:"-"`
		CreatedAt      time.Time `json:"createdAt"`
	}
)

// EmailJobFromConfig builds a job using the configured email credentials.
func EmailJobFromConfig(cfg Configuration, payload EmailPayload) EmailJob {
	return EmailJob{
		ServiceID:  cfg.Email.ServiceID,
		TemplateID: cfg.Email.TemplateID,
		PublicKey:  cfg.Email.PublicKey,
		PrivateKey: cfg.Email.PrivateKey,
		Payload:    payload,
	}
}
