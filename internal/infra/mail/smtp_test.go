package mail

import (
	"bytes"
	"context"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
	"testing"
	"time"

	dmail "subscription_notifier/internal/domain/mail"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMessageIsMultipartAlternative(t *testing.T) {
	date := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	raw, err := buildMessage(`"Subscription Tracker" <robot@example.com>`, dmail.Message{
		To:      "ada@example.com",
		Subject: "Trial ending: Figma trial ends tomorrow",
		Text:    "Your free trial of Figma ends tomorrow.",
		HTML:    "<p>Your free trial of Figma ends tomorrow.</p>",
	}, "<id-1@example.com>", date)
	require.NoError(t, err)

	parsed, err := mail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", parsed.Header.Get("To"))
	assert.Equal(t, "<id-1@example.com>", parsed.Header.Get("Message-ID"))
	assert.Equal(t, "Trial ending: Figma trial ends tomorrow", parsed.Header.Get("Subject"))

	mediaType, params, err := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/alternative", mediaType)

	mr := multipart.NewReader(parsed.Body, params["boundary"])
	var types, bodies []string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		b, err := io.ReadAll(p)
		require.NoError(t, err)
		types = append(types, p.Header.Get("Content-Type"))
		bodies = append(bodies, string(b))
	}
	require.Len(t, types, 2)
	assert.True(t, strings.HasPrefix(types[0], "text/plain"))
	assert.True(t, strings.HasPrefix(types[1], "text/html"))
	assert.Equal(t, "Your free trial of Figma ends tomorrow.", bodies[0])
	assert.Equal(t, "<p>Your free trial of Figma ends tomorrow.</p>", bodies[1])
}

func TestBuildMessageEncodesNonASCIISubject(t *testing.T) {
	raw, err := buildMessage("a@example.com", dmail.Message{To: "b@example.com", Subject: "Café renews today", Text: "x"}, "<id>", time.Now())
	require.NoError(t, err)

	parsed, err := mail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)
	decoded, err := new(mime.WordDecoder).DecodeHeader(parsed.Header.Get("Subject"))
	require.NoError(t, err)
	assert.Equal(t, "Café renews today", decoded)
}

func TestBuildMessageRejectsHeaderInjection(t *testing.T) {
	_, err := buildMessage("a@example.com", dmail.Message{To: "b@example.com\r\nBcc: c@example.com"}, "<id>", time.Now())
	assert.Error(t, err)
}

func TestSMTPTransportDialFailure(t *testing.T) {
	tr := NewSMTPTransport(Config{Host: "127.0.0.1", Port: 1, From: "robot@example.com"}, logrus.NewEntry(logrus.New()))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := tr.Send(ctx, dmail.Message{To: "ada@example.com", Subject: "s", Text: "t"})
	assert.ErrorContains(t, err, "dial")
}

func TestLogTransport(t *testing.T) {
	l := logrus.New()
	var buf bytes.Buffer
	l.SetOutput(&buf)

	id, err := NewLogTransport(logrus.NewEntry(l)).Send(context.Background(), dmail.Message{To: "ada@example.com", Subject: "Hello"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "log-"))
	assert.Contains(t, buf.String(), "ada@example.com")
}
