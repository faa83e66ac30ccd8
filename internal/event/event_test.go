package event

import (
	"context"
	"errors"
	"testing"
)

type textResponder struct {
	replies   []string
	followUps []string
}

func (r *textResponder) Reply(_ context.Context, s string) error {
	r.replies = append(r.replies, s)
	return nil
}

func (r *textResponder) FollowUp(_ context.Context, s string) error {
	r.followUps = append(r.followUps, s)
	return nil
}

func (r *textResponder) Responded() bool                         { return len(r.replies) > 0 }
func (r *textResponder) Suggest(context.Context, []Choice) error { return nil }

func TestRespondFollowsUpAfterReply(t *testing.T) {
	r := &textResponder{}
	e := &Event{Responder: r}
	ctx := context.Background()

	if err := e.Respond(ctx, "one"); err != nil {
		t.Fatal(err)
	}
	if err := e.Respond(ctx, "two"); err != nil {
		t.Fatal(err)
	}
	if len(r.replies) != 1 || len(r.followUps) != 1 || r.followUps[0] != "two" {
		t.Fatalf("replies = %q, follow-ups = %q", r.replies, r.followUps)
	}
}

func TestRespondWithoutResponder(t *testing.T) {
	if err := (&Event{ID: "x"}).Respond(context.Background(), "hi"); err == nil {
		t.Fatal("expected an error without a responder")
	}
}

func TestCapabilitiesFallBack(t *testing.T) {
	r := &textResponder{}
	e := &Event{Responder: r}
	ctx := context.Background()

	if err := e.Defer(ctx); err != nil {
		t.Fatalf("Defer on a text transport: %v", err)
	}
	if err := e.Present(ctx, Message{Content: "pick", Buttons: []ButtonSpec{{Label: "a", CustomID: "x:a"}}}); err != nil {
		t.Fatal(err)
	}
	if len(r.replies) != 1 || r.replies[0] != "pick" {
		t.Fatalf("Present fallback replies = %q", r.replies)
	}
	if err := e.ShowForm(ctx, Form{CustomID: "f"}); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("ShowForm err = %v, want ErrUnsupported", err)
	}
}
