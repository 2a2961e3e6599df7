// ABOUTME: Tests for SMTP message construction and sending
// ABOUTME: Parses built messages back with net/mail and mime/multipart

package delivery

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMessage(t *testing.T) {
	raw, err := BuildMessage("books@example.com", Message{
		To:             "alice@kindle.com",
		Subject:        "Dune",
		Body:           "# Dune\n\n*Frank Herbert*\n",
		AttachmentName: "Dune.epub",
		Attachment:     bytes.Repeat([]byte("x"), 200),
	}, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "books@example.com", msg.Header.Get("From"))
	assert.Equal(t, "alice@kindle.com", msg.Header.Get("To"))
	assert.Equal(t, "Dune", msg.Header.Get("Subject"))

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/mixed", mediaType)

	mr := multipart.NewReader(msg.Body, params["boundary"])

	altPart, err := mr.NextPart()
	require.NoError(t, err)
	altType, altParams, err := mime.ParseMediaType(altPart.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/alternative", altType)

	ar := multipart.NewReader(altPart, altParams["boundary"])
	textPart, err := ar.NextPart()
	require.NoError(t, err)
	text, err := io.ReadAll(textPart) // quoted-printable is decoded by multipart
	require.NoError(t, err)
	assert.Contains(t, string(text), "# Dune")

	htmlPart, err := ar.NextPart()
	require.NoError(t, err)
	html, err := io.ReadAll(htmlPart)
	require.NoError(t, err)
	assert.Contains(t, string(html), "<h1>Dune</h1>")
	assert.Contains(t, string(html), "<em>Frank Herbert</em>")

	attPart, err := mr.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "Dune.epub", attPart.FileName())
	encoded, err := io.ReadAll(attPart)
	require.NoError(t, err)
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(string(encoded), "\r\n", ""))
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte("x"), 200), decoded)

	_, err = mr.NextPart()
	assert.ErrorIs(t, err, io.EOF)
}

func TestBuildMessage_EncodesNonASCIISubject(t *testing.T) {
	raw, err := BuildMessage("a@example.com", Message{To: "b@example.com", Subject: "三体"}, time.Now())
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Subject: =?utf-8?q?")

	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)
	subject, err := new(mime.WordDecoder).DecodeHeader(msg.Header.Get("Subject"))
	require.NoError(t, err)
	assert.Equal(t, "三体", subject)
}

func TestNewSMTPMailer_Validation(t *testing.T) {
	_, err := NewSMTPMailer(SMTPConfig{From: "a@example.com"}, nil)
	assert.Error(t, err)
	_, err = NewSMTPMailer(SMTPConfig{Host: "smtp.example.com"}, nil)
	assert.Error(t, err)
}

func TestSMTPMailer_Send(t *testing.T) {
	m, err := NewSMTPMailer(SMTPConfig{
		Host: "smtp.example.com", Username: "u", Password: "p", From: "books@example.com",
	}, nil)
	require.NoError(t, err)

	var gotAddr, gotFrom string
	var gotTo []string
	var gotAuth smtp.Auth
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotAuth, gotFrom, gotTo = addr, a, from, to
		return nil
	}

	require.NoError(t, m.Send(context.Background(), Message{To: "alice@kindle.com", Subject: "x"}))
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.NotNil(t, gotAuth)
	assert.Equal(t, "books@example.com", gotFrom)
	assert.Equal(t, []string{"alice@kindle.com"}, gotTo)

	m.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("421 busy") }
	assert.ErrorContains(t, m.Send(context.Background(), Message{To: "x@y"}), "421 busy")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Send(ctx, Message{To: "x@y"}), context.Canceled)
}
