package notifier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf16"

	"github.com/goccy/go-json"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/segmentio/kafka-go"

	"KabuSentinel/internal/model"
)

type fakeNotifier struct {
	name  string
	fails int
	sent  []string
}

func (f *fakeNotifier) Name() string { return f.name }

func (f *fakeNotifier) Send(_ context.Context, text string) error {
	if f.fails > 0 {
		f.fails--
		return errors.New("unavailable")
	}
	f.sent = append(f.sent, text)
	return nil
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		limit int
		want  []string
	}{
		{"fits", "abc", 10, []string{"abc"}},
		{"line boundaries", "aaaa\nbbbb\ncc", 9, []string{"aaaa\nbbbb", "cc"}},
		{"long line", "abcdefgh", 3, []string{"abc", "def", "gh"}},
		{"multibyte", "あいうえお\nかきくけこ", 6, []string{"あいうえお", "かきくけこ"}},
		{"surrogate pairs", "🐇🐇🐇\n🐇🐇", 6, []string{"🐇🐇🐇", "🐇🐇"}},
		{"pairs counted twice", "🐇🐇🐇🐇", 5, []string{"🐇🐇", "🐇🐇"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Split(tt.text, tt.limit)
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("Split = %q, want %q", got, tt.want)
			}
			for _, c := range got {
				if n := len(utf16.Encode([]rune(c))); n > tt.limit {
					t.Errorf("chunk of %d code units exceeds %d", n, tt.limit)
				}
			}
		})
	}
}

func TestDiscordNotifier(t *testing.T) {
	var mu sync.Mutex
	var contents []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content type = %s", r.Header.Get("Content-Type"))
		}
		var payload map[string]string
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Error(err)
		}
		mu.Lock()
		contents = append(contents, payload["content"])
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewDiscordNotifier(srv.URL)
	line := strings.Repeat("x", 150)
	lines := make([]string, 30)
	for i := range lines {
		lines[i] = line
	}
	if err := d.Send(context.Background(), strings.Join(lines, "\n")); err != nil {
		t.Fatal(err)
	}
	if len(contents) != 3 {
		t.Fatalf("posted %d messages, want 3", len(contents))
	}
	for _, c := range contents {
		if len([]rune(c)) > DiscordLimit {
			t.Errorf("message of %d chars", len([]rune(c)))
		}
	}
}

func TestDiscordNotifier_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := NewDiscordNotifier(srv.URL).Send(context.Background(), "hi")
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Errorf("err = %v", err)
	}
}

func TestMulti(t *testing.T) {
	bad := &fakeNotifier{name: "bad", fails: 1}
	good := &fakeNotifier{name: "good"}
	err := Multi{bad, good}.Send(context.Background(), "report")
	if err == nil || !strings.Contains(err.Error(), "bad") {
		t.Errorf("err = %v", err)
	}
	if len(good.sent) != 1 {
		t.Error("healthy sink not attempted")
	}
}

func TestWithRetry(t *testing.T) {
	if n := WithRetry(&fakeNotifier{name: "x"}, 0, 0); n.Name() != "x" {
		t.Fatal("zero retries should return the sink itself")
	}
	if _, ok := WithRetry(&fakeNotifier{}, 0, 0).(*fakeNotifier); !ok {
		t.Error("zero retries wrapped the sink")
	}

	f := &fakeNotifier{name: "flaky", fails: 2}
	r := WithRetry(f, 3, time.Second).(*retrying)
	r.initial = time.Millisecond
	if err := r.Send(context.Background(), "hello"); err != nil {
		t.Fatal(err)
	}
	if len(f.sent) != 1 {
		t.Errorf("sent = %v", f.sent)
	}

	f = &fakeNotifier{name: "down", fails: 10}
	r = WithRetry(f, 2, time.Second).(*retrying)
	r.initial = time.Millisecond
	if err := r.Send(context.Background(), "hello"); err == nil {
		t.Error("expected error after retries")
	}
	if f.fails != 7 {
		t.Errorf("attempts = %d, want 3", 10-f.fails)
	}
}

func telegramServer(t *testing.T, sent chan<- url.Values) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			io.WriteString(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"kabu","username":"kabu_bot"}}`)
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			if err := r.ParseForm(); err != nil {
				t.Error(err)
			}
			sent <- r.PostForm
			io.WriteString(w, `{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"}}}`)
		default:
			io.WriteString(w, `{"ok":false,"error_code":404,"description":"Not Found"}`)
		}
	}))
}

func TestTelegramNotifier(t *testing.T) {
	sent := make(chan url.Values, 4)
	srv := telegramServer(t, sent)
	defer srv.Close()

	tn, err := newTelegramNotifier("TOKEN", "42", srv.URL+"/bot%s/%s", srv.Client())
	if err != nil {
		t.Fatal(err)
	}
	report := FormatReport(model.ModeDay, []model.Signal{{
		Ticker: "8795.T", Name: "T&D Holdings, Inc.", Reason: "<押し目>", Direction: model.DirectionBuy,
		Message: "RSI 売られすぎ", Snapshot: model.Snapshot{Close: 2345},
	}})
	if err := tn.Send(context.Background(), report); err != nil {
		t.Fatal(err)
	}
	form := <-sent
	want := "🐇 🔔 <b>【&lt;押し目&gt;】8795.T</b> T&amp;D Holdings, Inc. RSI 売られすぎ (2,345円)"
	if form.Get("chat_id") != "42" || form.Get("text") != want || form.Get("parse_mode") != "HTML" {
		t.Errorf("form = %v", form)
	}

	if _, err := newTelegramNotifier("TOKEN", "not-a-number", srv.URL+"/bot%s/%s", srv.Client()); err == nil {
		t.Error("expected chat id error")
	}
}

func TestTelegramDispatch(t *testing.T) {
	tn := &TelegramNotifier{chatID: 42}
	var gotCmd string
	var gotArgs []string
	handler := func(cmd string, args []string) string {
		gotCmd, gotArgs = cmd, args
		return "ok"
	}
	command := func(chatID int64, text string, n int) tgbotapi.Update {
		return tgbotapi.Update{Message: &tgbotapi.Message{
			Text:     text,
			Chat:     &tgbotapi.Chat{ID: chatID},
			Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: n}},
		}}
	}

	reply, ok := tn.dispatch(command(42, "/add 7203 9984", 4), handler)
	if !ok || reply != "ok" || gotCmd != "add" || fmt.Sprint(gotArgs) != "[7203 9984]" {
		t.Errorf("dispatch = %q %v, cmd=%q args=%v", reply, ok, gotCmd, gotArgs)
	}
	if _, ok := tn.dispatch(command(7, "/clear", 6), handler); ok {
		t.Error("command from another chat was handled")
	}
	if _, ok := tn.dispatch(tgbotapi.Update{Message: &tgbotapi.Message{Text: "hello", Chat: &tgbotapi.Chat{ID: 42}}}, handler); ok {
		t.Error("plain text was handled")
	}
}

type fakeWriter struct {
	msgs   []kafka.Message
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { w.closed = true; return nil }

func TestKafkaNotifier(t *testing.T) {
	w := &fakeWriter{}
	at := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	k := &KafkaNotifier{Writer: w, Key: "DAY", now: func() time.Time { return at }}
	if err := k.Send(context.Background(), "report"); err != nil {
		t.Fatal(err)
	}
	if err := k.Close(); err != nil || !w.closed {
		t.Fatal("writer not closed")
	}
	if len(w.msgs) != 1 {
		t.Fatalf("msgs = %d", len(w.msgs))
	}
	m := w.msgs[0]
	if string(m.Key) != "DAY" || string(m.Value) != "report" || !m.Time.Equal(at) {
		t.Errorf("message = %+v", m)
	}
}

func TestFormatReport(t *testing.T) {
	if FormatReport(model.ModeSwing, nil) != "" {
		t.Error("empty report should be empty")
	}
	signals := []model.Signal{
		{Ticker: "7203.T", Message: "RSI 売られすぎ (RSI 24.1)", Direction: model.DirectionBuy,
			Snapshot: model.Snapshot{Close: 2345}},
		{Ticker: "9984.T", Reason: "押し目", Strong: true, Message: "MA60 押し目",
			Direction: model.DirectionBuy, Snapshot: model.Snapshot{Close: 1234.5}},
		{Ticker: "6758.T", Reason: "監視", Message: "MA200 抵抗", Direction: model.DirectionSell,
			Snapshot: model.Snapshot{Close: 3000}},
	}
	got := FormatReport(model.ModeDay, signals)
	lines := strings.Split(got, "\n")
	if len(lines) != 3 {
		t.Fatalf("report = %q", got)
	}
	if !strings.HasPrefix(lines[0], "🐇 ✨ **7203.T**") || !strings.HasSuffix(lines[0], "(2,345円)") {
		t.Errorf("line 0 = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "💎") || !strings.Contains(lines[1], "【押し目】9984.T") || !strings.Contains(lines[1], "1,234.5円") {
		t.Errorf("line 1 = %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "🔔") {
		t.Errorf("line 2 = %q", lines[2])
	}
	if !strings.HasPrefix(FormatReport(model.ModeSwing, signals[:1]), "🐢 ") {
		t.Error("swing icon missing")
	}
}
