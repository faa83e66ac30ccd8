package notify

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/interkit/pkg/retrylimit"
	"github.com/rs/zerolog"
)

type fakeDM struct {
	mu       sync.Mutex
	sent     map[string][]string
	failures int
	failWith error
}

func (f *fakeDM) UserChannelCreate(id string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	return &discordgo.Channel{ID: "dm-" + id}, nil
}

func (f *fakeDM) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return nil, f.failWith
	}
	if f.sent == nil {
		f.sent = make(map[string][]string)
	}
	f.sent[channelID] = append(f.sent[channelID], content)
	return &discordgo.Message{}, nil
}

func newTestDM(fake *fakeDM, owners ...string) *OwnerDM {
	dm := NewOwnerDM(fake, owners, zerolog.Nop())
	dm.policy.InitialDelay = time.Millisecond
	dm.policy.Jitter = false
	dm.limiter = retrylimit.NewLimiter(1000, 1, 1000)
	return dm
}

func TestOwnerDMSendsToEveryOwner(t *testing.T) {
	fake := &fakeDM{}
	newTestDM(fake, "o1", "o2").Notify(context.Background(), "store down")

	for _, ch := range []string{"dm-o1", "dm-o2"} {
		msgs := fake.sent[ch]
		if len(msgs) != 1 || !strings.Contains(msgs[0], "store down") {
			t.Fatalf("%s messages = %q", ch, msgs)
		}
	}
}

func TestOwnerDMRetriesTransientFailures(t *testing.T) {
	fake := &fakeDM{failures: 2, failWith: errors.New("connection reset")}
	newTestDM(fake, "o1").Notify(context.Background(), "hello")
	if len(fake.sent["dm-o1"]) != 1 {
		t.Fatalf("sent = %v, want delivery after retries", fake.sent)
	}
}

func TestOwnerDMDoesNotRetryClientErrors(t *testing.T) {
	forbidden := &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusForbidden}}
	fake := &fakeDM{failures: 1, failWith: forbidden}
	newTestDM(fake, "o1").Notify(context.Background(), "hello")
	if len(fake.sent["dm-o1"]) != 0 {
		t.Fatalf("sent = %v, want no retry after 403", fake.sent)
	}
}

func TestOwnerDMTruncatesLongMessages(t *testing.T) {
	tests := []struct {
		name string
		msg  string
	}{
		{name: "ascii", msg: strings.Repeat("x", 5000)},
		{name: "multi-byte", msg: strings.Repeat("é", 5000)},
		{name: "emoji", msg: strings.Repeat("⏳", 3000)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeDM{}
			newTestDM(fake, "o1").Notify(context.Background(), tt.msg)
			sent := fake.sent["dm-o1"][0]
			if !utf8.ValidString(sent) {
				t.Fatal("truncation split a character")
			}
			if got := utf8.RuneCountInString(sent); got != maxMessage {
				t.Fatalf("length = %d characters, want %d", got, maxMessage)
			}
			if !strings.HasSuffix(sent, "...") {
				t.Fatalf("truncated message lacks an ellipsis: %q", sent[len(sent)-10:])
			}
		})
	}
}

func TestMulti(t *testing.T) {
	var got []string
	rec := Func(func(_ context.Context, msg string) { got = append(got, msg) })
	Multi{rec, nil, Nop, rec}.Notify(context.Background(), "m")
	if len(got) != 2 {
		t.Fatalf("deliveries = %d, want 2", len(got))
	}
}

func TestClassify(t *testing.T) {
	if classify(nil) != nil {
		t.Fatal("nil must stay nil")
	}
	serverErr := classify(&discordgo.RESTError{Response: &http.Response{StatusCode: 502}})
	if !retrylimit.Throttling(serverErr) {
		t.Fatalf("502 must be throttling: %v", serverErr)
	}
	var perm *retrylimit.Permanent
	if !errors.As(classify(&discordgo.RESTError{Response: &http.Response{StatusCode: 404}}), &perm) {
		t.Fatal("404 must be permanent")
	}
}
