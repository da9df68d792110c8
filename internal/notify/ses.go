package notify

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ses"
)

// SESHandler sends welcome emails through Amazon SES, grounded on the
// teacher's push/tnpg handler shape: a buffered input channel drained by a
// single worker goroutine, Stop closing it down.
type SESHandler struct {
	from   string
	client *ses.SES
	input  chan *Receipt
	stop   chan struct{}
	ready  bool
}

type sesConfig struct {
	Region string `json:"region"`
	From   string `json:"from"`
}

// Init creates the SES client from a JSON config (region, from address).
func (h *SESHandler) Init(config string) error {
	var cfg sesConfig
	if err := json.Unmarshal([]byte(config), &cfg); err != nil {
		return fmt.Errorf("notify/ses: bad config: %w", err)
	}
	if cfg.From == "" {
		return fmt.Errorf("notify/ses: missing from address")
	}

	sess, err := session.NewSession(&aws.Config{Region: aws.String(cfg.Region)})
	if err != nil {
		return err
	}

	h.client = ses.New(sess)
	h.from = cfg.From
	h.input = make(chan *Receipt, 256)
	h.stop = make(chan struct{})
	h.ready = true

	go h.run()
	return nil
}

// IsReady reports whether Init succeeded.
func (h *SESHandler) IsReady() bool { return h.ready }

// Push returns the channel the server enqueues receipts onto.
func (h *SESHandler) Push() chan<- *Receipt { return h.input }

// Stop terminates the worker goroutine.
func (h *SESHandler) Stop() {
	if h.stop != nil {
		close(h.stop)
	}
}

func (h *SESHandler) run() {
	for {
		select {
		case r := <-h.input:
			if r.Email == "" {
				continue
			}
			h.send(r)
		case <-h.stop:
			return
		}
	}
}

func (h *SESHandler) send(r *Receipt) {
	subject := "Welcome to linechatd"
	body := fmt.Sprintf("Hi %s, your account is ready.", r.Username)

	_, err := h.client.SendEmail(&ses.SendEmailInput{
		Source: aws.String(h.from),
		Destination: &ses.Destination{
			ToAddresses: []*string{aws.String(r.Email)},
		},
		Message: &ses.Message{
			Subject: &ses.Content{Data: aws.String(subject)},
			Body: &ses.Body{
				Text: &ses.Content{Data: aws.String(body)},
			},
		},
	})
	if err != nil {
		log.Printf("notify/ses: send to %s failed: %v", r.Email, err)
	}
}
