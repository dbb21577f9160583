package news

import (
	"errors"
	"testing"
	"time"
)

func TestDeriveUrgency(t *testing.T) {
	cases := []struct {
		name     string
		tags     []string
		priority bool
		want     Urgency
	}{
		{"hot tag wins", []string{"HOT"}, false, UrgencyBreaking},
		{"hot beats priority", []string{"HOT"}, true, UrgencyBreaking},
		{"priority without tags", nil, true, UrgencyHigh},
		{"warm tag", []string{"WARM"}, false, UrgencyHigh},
		{"priority beats warm ordering", []string{"WARM"}, true, UrgencyHigh},
		{"nothing", nil, false, UrgencyNormal},
		{"unknown tags ignored", []string{"COLD", "misc"}, false, UrgencyNormal},
	}
	for _, tc := range cases {
		if got := DeriveUrgency(tc.tags, tc.priority); got != tc.want {
			t.Fatalf("%s: DeriveUrgency = %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestCategoryFromString(t *testing.T) {
	cases := []struct {
		in   string
		want Category
		ok   bool
	}{
		{"crypto", CategoryCrypto, true},
		{"Politics", CategoryPolitics, true},
		{"  economics  ", CategoryEconomics, true},
		{"macro", CategoryEconomics, true},
		{"economic_data", CategoryEconomics, true},
		{"geopolitics", CategoryPolitics, true},
		{"regulation", CategoryPolitics, true},
		{"stocks", CategoryFinancials, true},
		{"earnings", CategoryFinancials, true},
		{"tech", CategoryTechScience, true},
		{"Tech & Science", CategoryTechScience, true},
		{"gibberish", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := CategoryFromString(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("CategoryFromString(%q) = (%s, %v), want (%s, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestSourceTypeFromString(t *testing.T) {
	if got := SourceTypeFromString("twitter"); got != SourceSocial {
		t.Fatalf("twitter mapped to %s", got)
	}
	if got := SourceTypeFromString("telegram"); got != SourceSocial {
		t.Fatalf("telegram mapped to %s", got)
	}
	if got := SourceTypeFromString("news"); got != SourceWire {
		t.Fatalf("news mapped to %s", got)
	}
	if got := SourceTypeFromString("carrier pigeon"); got != SourceOther {
		t.Fatalf("unknown mapped to %s", got)
	}
}

func TestNewTaggedItemRejectsBadScore(t *testing.T) {
	base := TaggedItem{ID: "n1", Timestamp: time.Now()}

	for _, score := range []float64{-1.5, 1.01, 2} {
		item := base
		item.SentimentScore = score
		if _, err := NewTaggedItem(item); err == nil {
			t.Fatalf("expected validation error for score %v", score)
		}
	}

	item := base
	item.SentimentScore = -1.0
	if _, err := NewTaggedItem(item); err != nil {
		t.Fatalf("boundary score rejected: %v", err)
	}
}

func TestNewTaggedItemRequiresID(t *testing.T) {
	if _, err := NewTaggedItem(TaggedItem{}); err == nil {
		t.Fatalf("expected validation error for empty id")
	}
}

func TestRawItemValidate(t *testing.T) {
	item := &RawItem{ID: "n1", Headline: "h", Timestamp: time.Now()}
	if err := item.Validate(); err != nil {
		t.Fatalf("valid item rejected: %v", err)
	}

	missing := &RawItem{Headline: "h", Timestamp: time.Now()}
	var verr *ValidationError
	if err := missing.Validate(); !errors.As(err, &verr) || verr.Field != "id" {
		t.Fatalf("expected id validation error, got %v", err)
	}
}
