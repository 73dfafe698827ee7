package chat

import (
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/go-cmp/cmp"
)

func date(t *testing.T, s string) civil.Date {
	t.Helper()
	d, err := civil.ParseDate(s)
	if err != nil {
		t.Fatalf("Could not parse date %q: %v", s, err)
	}
	return d
}

func msg(t *testing.T, sender, text, sentAt string) Message {
	t.Helper()
	return Message{SenderID: sender, Text: text, SentAtDate: date(t, sentAt)}
}

// texts flattens sections into sender:[texts] per batch for compact comparison.
func texts(sections []Section) [][]string {
	var out [][]string
	for _, s := range sections {
		for _, b := range s.Batches {
			row := []string{b.SenderID}
			for _, m := range b.Messages {
				row = append(row, m.Text)
			}
			out = append(out, row)
		}
	}
	return out
}

func TestGroupMessages(t *testing.T) {
	tests := []struct {
		name        string
		msgs        func(t *testing.T) []Message
		currentYear int
		wantTitles  []string
		wantBatches [][]string
	}{
		{
			name:        "Empty",
			msgs:        func(t *testing.T) []Message { return nil },
			currentYear: 2023,
		},
		{
			name: "Single",
			msgs: func(t *testing.T) []Message {
				return []Message{msg(t, "A", "x", "2023-07-18")}
			},
			currentYear: 2023,
			wantTitles:  []string{"Tue, July 18"},
			wantBatches: [][]string{{"A", "x"}},
		},
		{
			name: "SameDayTwoSenders",
			msgs: func(t *testing.T) []Message {
				return []Message{
					msg(t, "A", "hi", "2023-07-18"),
					msg(t, "A", "there", "2023-07-18"),
					msg(t, "B", "hey", "2023-07-18"),
				}
			},
			currentYear: 2023,
			wantTitles:  []string{"Tue, July 18"},
			wantBatches: [][]string{{"A", "hi", "there"}, {"B", "hey"}},
		},
		{
			name: "PreviousYear",
			msgs: func(t *testing.T) []Message {
				return []Message{msg(t, "A", "x", "2022-05-11")}
			},
			currentYear: 2023,
			wantTitles:  []string{"May 11, 2022"},
			wantBatches: [][]string{{"A", "x"}},
		},
		{
			name: "AlternatingSendersNotMerged",
			msgs: func(t *testing.T) []Message {
				return []Message{
					msg(t, "A", "1", "2023-06-19"),
					msg(t, "B", "2", "2023-06-19"),
					msg(t, "A", "3", "2023-06-19"),
				}
			},
			currentYear: 2023,
			wantTitles:  []string{"Mon, June 19"},
			wantBatches: [][]string{{"A", "1"}, {"B", "2"}, {"A", "3"}},
		},
		{
			name: "FirstSeenOrder",
			msgs: func(t *testing.T) []Message {
				return []Message{
					msg(t, "A", "late", "2023-07-18"),
					msg(t, "A", "early", "2023-06-19"),
				}
			},
			currentYear: 2023,
			wantTitles:  []string{"Tue, July 18", "Mon, June 19"},
			wantBatches: [][]string{{"A", "late"}, {"A", "early"}},
		},
		{
			name: "SameSenderAcrossDates",
			msgs: func(t *testing.T) []Message {
				return []Message{
					msg(t, "notUser", "message", "2022-05-11"),
					msg(t, "notUser", "message 2", "2023-06-19"),
					msg(t, "notUser", "message 3", "2023-06-19"),
					msg(t, "user", "message 4", "2023-06-19"),
					msg(t, "user", "message 5", "2023-06-19"),
					msg(t, "notUser", "message 6", "2023-07-17"),
					msg(t, "user", "message 7", "2023-07-18"),
				}
			},
			currentYear: 2023,
			wantTitles:  []string{"May 11, 2022", "Mon, June 19", "Mon, July 17", "Tue, July 18"},
			wantBatches: [][]string{
				{"notUser", "message"},
				{"notUser", "message 2", "message 3"},
				{"user", "message 4", "message 5"},
				{"notUser", "message 6"},
				{"user", "message 7"},
			},
		},
		{
			name: "InterleavedDates",
			msgs: func(t *testing.T) []Message {
				return []Message{
					msg(t, "A", "1", "2023-07-18"),
					msg(t, "A", "2", "2023-07-17"),
					msg(t, "A", "3", "2023-07-18"),
				}
			},
			currentYear: 2023,
			wantTitles:  []string{"Tue, July 18", "Mon, July 17"},
			wantBatches: [][]string{{"A", "1", "3"}, {"A", "2"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GroupMessages(tt.msgs(t), tt.currentYear)
			if err != nil {
				t.Fatalf("GroupMessages() error = %v", err)
			}
			if got == nil {
				t.Fatal("GroupMessages() returned nil sections")
			}

			var titles []string
			for _, s := range got {
				titles = append(titles, s.Title)
			}
			if diff := cmp.Diff(tt.wantTitles, titles); diff != "" {
				t.Errorf("Titles mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantBatches, texts(got)); diff != "" {
				t.Errorf("Batches mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGroupMessages_Properties(t *testing.T) {
	senders := []string{"A", "A", "B", "C", "B", "B", "A"}
	days := []string{"2023-07-18", "2023-07-17", "2024-01-01", "2023-07-18"}

	var msgs []Message
	for i := 0; i < 50; i++ {
		msgs = append(msgs, msg(t, senders[i%len(senders)], "m", days[(i*7+i/3)%len(days)]))
	}

	got, err := GroupMessages(msgs, 2023)
	if err != nil {
		t.Fatalf("GroupMessages() error = %v", err)
	}

	total := 0
	seen := make(map[civil.Date]bool)
	for _, s := range got {
		if seen[s.Date] {
			t.Errorf("Date %s appears in more than one section", s.Date)
		}
		seen[s.Date] = true
		for i, b := range s.Batches {
			if len(b.Messages) == 0 {
				t.Errorf("Section %s batch %d is empty", s.Date, i)
			}
			if i > 0 && s.Batches[i-1].SenderID == b.SenderID {
				t.Errorf("Section %s has adjacent batches from %s", s.Date, b.SenderID)
			}
			for _, m := range b.Messages {
				if m.SentAtDate != s.Date {
					t.Errorf("Message dated %s grouped under %s", m.SentAtDate, s.Date)
				}
				if m.SenderID != b.SenderID {
					t.Errorf("Message from %s grouped under %s", m.SenderID, b.SenderID)
				}
			}
			total += len(b.Messages)
		}
	}
	if total != len(msgs) {
		t.Errorf("Got %d grouped messages, want %d", total, len(msgs))
	}

	var wantOrder []civil.Date
	first := make(map[civil.Date]bool)
	for _, m := range msgs {
		if !first[m.SentAtDate] {
			first[m.SentAtDate] = true
			wantOrder = append(wantOrder, m.SentAtDate)
		}
	}
	var gotOrder []civil.Date
	for _, s := range got {
		gotOrder = append(gotOrder, s.Date)
	}
	if diff := cmp.Diff(wantOrder, gotOrder); diff != "" {
		t.Errorf("Section order mismatch (-want +got):\n%s", diff)
	}
}

func TestGroupMessages_Malformed(t *testing.T) {
	tests := []struct {
		name      string
		msgs      []Message
		wantIndex int
		wantField string
	}{
		{
			name: "MissingDate",
			msgs: []Message{
				{SenderID: "A", Text: "ok", SentAtDate: civil.Date{Year: 2023, Month: time.June, Day: 19}},
				{SenderID: "A", Text: "no date"},
			},
			wantIndex: 1,
			wantField: "sent_at_date",
		},
		{
			name: "InvalidDate",
			msgs: []Message{
				{SenderID: "A", Text: "feb 30", SentAtDate: civil.Date{Year: 2023, Month: time.February, Day: 30}},
			},
			wantIndex: 0,
			wantField: "sent_at_date",
		},
		{
			name: "MissingSender",
			msgs: []Message{
				{SenderID: "A", Text: "1", SentAtDate: civil.Date{Year: 2023, Month: time.June, Day: 19}},
				{SenderID: "B", Text: "2", SentAtDate: civil.Date{Year: 2023, Month: time.June, Day: 19}},
				{Text: "3", SentAtDate: civil.Date{Year: 2023, Month: time.June, Day: 19}},
			},
			wantIndex: 2,
			wantField: "sender_id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GroupMessages(tt.msgs, 2023)
			if got != nil {
				t.Errorf("Got partial result %v, want nil", got)
			}
			var mErr *MalformedInputError
			if !errors.As(err, &mErr) {
				t.Fatalf("Got error %v, want *MalformedInputError", err)
			}
			if mErr.Index != tt.wantIndex || mErr.Field != tt.wantField {
				t.Errorf("Got index %d field %q, want index %d field %q", mErr.Index, mErr.Field, tt.wantIndex, tt.wantField)
			}
		})
	}
}

func TestSectionTitle(t *testing.T) {
	tests := []struct {
		date        civil.Date
		currentYear int
		want        string
	}{
		{civil.Date{Year: 2023, Month: time.June, Day: 19}, 2023, "Mon, June 19"},
		{civil.Date{Year: 2022, Month: time.June, Day: 19}, 2023, "June 19, 2022"},
		{civil.Date{Year: 2024, Month: time.January, Day: 1}, 2023, "January 1, 2024"},
		{civil.Date{Year: 2022, Month: time.December, Day: 31}, 2022, "Sat, December 31"},
		{civil.Date{Year: 2023, Month: time.January, Day: 1}, 2023, "Sun, January 1"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := SectionTitle(tt.date, tt.currentYear); got != tt.want {
				t.Errorf("SectionTitle(%s, %d) = %q, want %q", tt.date, tt.currentYear, got, tt.want)
			}
		})
	}
}

func TestGroupMessagesAt(t *testing.T) {
	now := time.Date(2022, 12, 31, 23, 0, 0, 0, time.UTC)
	got, err := GroupMessagesAt([]Message{msg(t, "A", "x", "2022-05-11")}, now)
	if err != nil {
		t.Fatalf("GroupMessagesAt() error = %v", err)
	}
	if len(got) != 1 || got[0].Title != "Wed, May 11" {
		t.Errorf("Got %+v, want a single section titled %q", got, "Wed, May 11")
	}
}
