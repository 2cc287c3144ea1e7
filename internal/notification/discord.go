package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	colorRed    = 16711680
	colorGreen  = 65280
	colorYellow = 16776960
)

type DiscordMessage struct {
	Embeds []DiscordEmbed `json:"embeds"`
}

type DiscordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
}

// Discord posts webhook embeds. An empty URL disables that notification
// kind.
type Discord struct {
	ErrorURL   string
	SuccessURL string
	Client     *http.Client
}

func NewDiscord(errorURL, successURL string) *Discord {
	return &Discord{
		ErrorURL:   errorURL,
		SuccessURL: successURL,
		Client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *Discord) SendError(ctx context.Context, errorMessage string) error {
	return d.send(ctx, d.ErrorURL, DiscordEmbed{
		Title:       "🚨 Error Notification",
		Description: fmt.Sprintf("Fire risk pipeline\n\nAn error occurred: %s", errorMessage),
		Color:       colorRed,
	})
}

func (d *Discord) SendSuccess(ctx context.Context, successMessage string) error {
	return d.send(ctx, d.SuccessURL, DiscordEmbed{
		Title:       "✅ Success Notification",
		Description: fmt.Sprintf("Fire risk pipeline\n\n%s", successMessage),
		Color:       colorGreen,
	})
}

// SendWarning goes to the error webhook with a warning embed.
func (d *Discord) SendWarning(ctx context.Context, warningMessage string) error {
	return d.send(ctx, d.ErrorURL, DiscordEmbed{
		Title:       "⚠️ Warning Notification",
		Description: fmt.Sprintf("Fire risk pipeline\n\n%s", warningMessage),
		Color:       colorYellow,
	})
}

func (d *Discord) send(ctx context.Context, url string, embed DiscordEmbed) error {
	if url == "" {
		return nil
	}

	payload, err := json.Marshal(DiscordMessage{Embeds: []DiscordEmbed{embed}})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to send Discord notification, status code: %d", resp.StatusCode)
	}

	return nil
}
