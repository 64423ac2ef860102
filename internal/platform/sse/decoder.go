package sse

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ryfty/ryfty-payments/internal/domain"
)

const maxFrameLine = 1 << 20

// frame is one dispatched server-sent event.
type frame struct {
	Event string
	ID    string
	Data  string
}

// decoder reads text/event-stream frames line by line.
type decoder struct {
	scanner *bufio.Scanner
}

func newDecoder(r io.Reader) *decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxFrameLine)
	return &decoder{scanner: scanner}
}

// next returns the next frame with a non-empty data field.
// A frame cut off by the end of the stream is discarded and io.EOF is returned.
func (d *decoder) next() (frame, error) {
	var (
		f    frame
		data []string
	)
	for d.scanner.Scan() {
		line := strings.TrimSuffix(d.scanner.Text(), "\r")
		if line == "" {
			if len(data) == 0 {
				f = frame{}
				continue
			}
			f.Data = strings.Join(data, "\n")
			return f, nil
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "data":
			data = append(data, value)
		case "event":
			f.Event = value
		case "id":
			f.ID = value
		}
	}
	if err := d.scanner.Err(); err != nil {
		return frame{}, err
	}
	return frame{}, io.EOF
}

// wireEvent is the JSON payload published for every payment status change.
type wireEvent struct {
	Type string `json:"type"`
	Data struct {
		State         string `json:"state"`
		TransactionID string `json:"transaction_id"`
		Description   string `json:"description"`
	} `json:"data"`
	SentAt string `json:"sent_at"`
}

var errUnknownState = errors.New("unknown payment state")

var sentAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
}

// DecodeEvent parses one status payload. It is shared by every event source.
func DecodeEvent(payload []byte) (domain.PaymentEvent, error) {
	var wire wireEvent
	if err := json.Unmarshal(payload, &wire); err != nil {
		return domain.PaymentEvent{}, fmt.Errorf("failed to decode event: %w", err)
	}

	state := domain.EventState(wire.Data.State)
	if !state.IsValid() {
		return domain.PaymentEvent{}, fmt.Errorf("%w: %q", errUnknownState, wire.Data.State)
	}

	return domain.PaymentEvent{
		Type:          wire.Type,
		State:         state,
		TransactionID: wire.Data.TransactionID,
		Description:   wire.Data.Description,
		Timestamp:     parseSentAt(wire.SentAt),
	}, nil
}

func parseSentAt(value string) time.Time {
	for _, layout := range sentAtLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}
