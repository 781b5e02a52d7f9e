package config

import (
	"github.com/himeno-lab/kotori/pkg/service/whatsapp"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// WhatsApp holds CLI flags for the WhatsApp Cloud API integration
type WhatsApp struct {
	token         string
	phoneNumberID string
	verifyToken   string
}

// Flags returns CLI flags for WhatsApp configuration
func (w *WhatsApp) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "whatsapp-token",
			Usage:       "WhatsApp Cloud API access token",
			Sources:     cli.EnvVars("KOTORI_WHATSAPP_TOKEN"),
			Destination: &w.token,
		},
		&cli.StringFlag{
			Name:        "whatsapp-phone-number-id",
			Usage:       "WhatsApp Cloud API phone number ID",
			Sources:     cli.EnvVars("KOTORI_WHATSAPP_PHONE_NUMBER_ID"),
			Destination: &w.phoneNumberID,
		},
		&cli.StringFlag{
			Name:        "whatsapp-verify-token",
			Usage:       "Webhook subscription verify token",
			Sources:     cli.EnvVars("KOTORI_WHATSAPP_VERIFY_TOKEN"),
			Destination: &w.verifyToken,
		},
	}
}

// IsConfigured reports whether the webhook can be mounted
func (w *WhatsApp) IsConfigured() bool {
	return w.token != "" && w.phoneNumberID != "" && w.verifyToken != ""
}

// VerifyToken returns the webhook verify token
func (w *WhatsApp) VerifyToken() string {
	return w.verifyToken
}

// Configure creates the WhatsApp Cloud API client
func (w *WhatsApp) Configure() (*whatsapp.Client, error) {
	if !w.IsConfigured() {
		return nil, goerr.New("whatsapp-token, whatsapp-phone-number-id and whatsapp-verify-token are all required")
	}
	return whatsapp.New(w.token, w.phoneNumberID)
}
