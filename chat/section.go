// Package chat shapes already-fetched conversation data into the
// view-models the client renders.
package chat

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/elliotchance/orderedmap/v3"
)

// A Message is a single conversation message as the grouping sees it.
type Message struct {
	ID         string     `json:"id,omitempty"`
	SenderID   string     `json:"sender_id"`
	Text       string     `json:"text"`
	SentAtDate civil.Date `json:"sent_at_date"`
	// SentAtTime is a display label only. It plays no part in ordering.
	SentAtTime string `json:"sent_at_time"`
}

// A Batch is a maximal run of consecutive messages from one sender within a
// single date.
type Batch struct {
	SenderID string    `json:"sender_id"`
	Messages []Message `json:"messages"`
}

// A Section holds one calendar date of a conversation.
type Section struct {
	Date    civil.Date `json:"date"`
	Title   string     `json:"title"`
	Batches []Batch    `json:"batches"`
}

// MalformedInputError reports a message that cannot be grouped.
type MalformedInputError struct {
	Index int
	Field string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed message at index %d: missing or invalid %s", e.Index, e.Field)
}

const (
	longTitleLayout  = "January 2, 2006"
	shortTitleLayout = "Mon, January 2"
)

// SectionTitle formats d as a section header. Dates in currentYear omit the
// year and carry a weekday, older or future years spell the year out.
func SectionTitle(d civil.Date, currentYear int) string {
	t := d.In(time.UTC)
	if d.Year != currentYear {
		return t.Format(longTitleLayout)
	}
	return t.Format(shortTitleLayout)
}

// GroupMessages splits msgs into date sections of same-sender batches.
//
// The input order is preserved: sections appear in the order their date is
// first seen and messages keep their relative order inside each batch, so
// chronological and reverse-chronological input both work. Consecutive
// messages from one sender on one date always share a batch regardless of
// the time between them.
//
// A message with an invalid date or no sender fails the whole call with a
// *MalformedInputError; nothing is silently dropped.
func GroupMessages(msgs []Message, currentYear int) ([]Section, error) {
	sections := orderedmap.NewOrderedMap[civil.Date, *Section]()

	for i, msg := range msgs {
		if msg.SenderID == "" {
			return nil, &MalformedInputError{Index: i, Field: "sender_id"}
		}
		if !msg.SentAtDate.IsValid() {
			return nil, &MalformedInputError{Index: i, Field: "sent_at_date"}
		}

		sec, ok := sections.Get(msg.SentAtDate)
		if !ok {
			sec = &Section{Date: msg.SentAtDate}
			sections.Set(msg.SentAtDate, sec)
		}

		if n := len(sec.Batches); n > 0 && sec.Batches[n-1].SenderID == msg.SenderID {
			sec.Batches[n-1].Messages = append(sec.Batches[n-1].Messages, msg)
			continue
		}
		sec.Batches = append(sec.Batches, Batch{
			SenderID: msg.SenderID,
			Messages: []Message{msg},
		})
	}

	out := make([]Section, 0, sections.Len())
	for sec := range sections.Values() {
		sec.Title = SectionTitle(sec.Date, currentYear)
		out = append(out, *sec)
	}
	return out, nil
}

// GroupMessagesAt is GroupMessages with the current year taken from now.
func GroupMessagesAt(msgs []Message, now time.Time) ([]Section, error) {
	return GroupMessages(msgs, now.Year())
}
