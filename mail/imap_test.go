package mail

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const plainMessage = "From: CMB <95555@message.cmbchina.com>\r\n" +
	"To: user@example.com\r\n" +
	"Subject: =?utf-8?B?5oub5ZWG6ZO26KGM?=\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"您账户8551于02月21日19:25在财付通-微信支付-山月荟装扮快捷支付3.00元，余额100638.62\r\n"

const multipartMessage = "From: CMB <95555@message.cmbchina.com>\r\n" +
	"To: user@example.com\r\n" +
	"Subject: notify\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/alternative; boundary=frontier\r\n" +
	"\r\n" +
	"--frontier\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"plain body wins\r\n" +
	"--frontier\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<html><body><p>html body loses</p></body></html>\r\n" +
	"--frontier--\r\n"

const htmlOnlyMessage = "From: CMB <95555@message.cmbchina.com>\r\n" +
	"To: user@example.com\r\n" +
	"Subject: notify\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<html><body><p>您账户8551于02月21日19:25</p><p>在财付通消费&nbsp;3.00元</p></body></html>\r\n"

func TestExtractBody_Plain(t *testing.T) {
	body, err := extractBody(strings.NewReader(plainMessage))
	assert.NoError(t, err)
	assert.Contains(t, body, "快捷支付3.00元")
}

func TestExtractBody_PlainPreferredOverHTML(t *testing.T) {
	body, err := extractBody(strings.NewReader(multipartMessage))
	assert.NoError(t, err)
	assert.Contains(t, body, "plain body wins")
	assert.NotContains(t, body, "html body loses")
}

func TestExtractBody_HTMLFallback(t *testing.T) {
	body, err := extractBody(strings.NewReader(htmlOnlyMessage))
	assert.NoError(t, err)
	assert.Contains(t, body, "您账户8551于02月21日19:25")
	assert.Contains(t, body, "在财付通消费 3.00元")
	assert.NotContains(t, body, "<p>")
}

func TestHTMLToText(t *testing.T) {
	text := htmlToText("<div>line one</div><div>line &amp; two</div>")
	assert.Equal(t, "line one\nline & two", text)

	assert.Equal(t, "", htmlToText(""))
}
