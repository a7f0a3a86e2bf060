package parser_test

import (
	"testing"

	"wirelens/internal/expect"
	"wirelens/internal/parser"
	"wirelens/pkg/models"
)

func pair(first, second string) models.TextParserResponse {
	return models.TextParserResponse{FirstName: first, SurnameOrHandle: second}
}

func text(s string) models.OCRResponse {
	return models.OCRResponse{Text: s, Engine: models.EngineText}
}

func TestParseResponseFirstCandidate(t *testing.T) {
	tests := []struct {
		name string
		text string
		want models.TextParserResponse
	}{
		{
			name: "guest card",
			text: "65twenty\nGuest WiFi\nNetwork: 65twenty_guest\nPassword: guest7ad\n",
			want: pair("65twenty_guest", "guest7ad"),
		},
		{
			name: "labels without separator",
			text: "WiFi droidconuk\nPassword NOugatyNiceness",
			want: pair("droidconuk", "NOugatyNiceness"),
		},
		{
			name: "both labels on one line",
			text: "Welcome!\nSSID: CafeNet   Key: latte-2024",
			want: pair("CafeNet", "latte-2024"),
		},
		{
			name: "equals separator and quotes",
			text: "ssid = \"HomeBase\"\npassphrase = 'c0ffee!!'",
			want: pair("HomeBase", "c0ffee!!"),
		},
		{
			name: "value on next line",
			text: "Network name\nOfficeGuest\nPassword:\nwelcome123.",
			want: pair("OfficeGuest", "welcome123"),
		},
		{
			name: "windows line endings",
			text: "Wi-Fi Name: Lobby\r\nWPA2 Key: s3cret-key\r\n",
			want: pair("Lobby", "s3cret-key"),
		},
		{
			name: "badge labels",
			text: "Name: Ada\nHandle: @countess",
			want: pair("Ada", "@countess"),
		},
		{
			name: "consecutive tokens",
			text: "Scan to join\nBeachHouse\nsunnyday42\n",
			want: pair("BeachHouse", "sunnyday42"),
		},
		{
			name: "labelled full name",
			text: "Name: Grace Hopper",
			want: pair("Grace", "Hopper"),
		},
		{
			name: "value that is a label word",
			text: "SSID:\nCafe\nPassword:\npass",
			want: pair("Cafe", "pass"),
		},
		{
			name: "name badge",
			text: "DROIDCON\nHello my name is\nGrace Hopper\n",
			want: pair("Grace", "Hopper"),
		},
	}

	p := parser.NewSimpleTextParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expect.FirstCandidateIs(t, p.ParseResponse(text(tt.text)), tt.want)

			got, err := p.First(text(tt.text))
			expect.NoError(t, err)
			expect.ResponseEquals(t, got, tt.want)
		})
	}
}

func TestParseResponseLabelledBeforeTokens(t *testing.T) {
	p := parser.NewSimpleTextParser()

	got := p.All(text("Lounge\nupstairs\nNetwork: Lounge5G\nPassword: hunter22"), 0)
	if len(got) != 2 {
		t.Fatalf("candidates = %v", got)
	}
	expect.ResponseEquals(t, got[0], pair("Lounge5G", "hunter22"))
	expect.ResponseEquals(t, got[1], pair("Lounge", "upstairs"))
}

func TestParseResponsePairsLabelsInOrder(t *testing.T) {
	p := parser.NewSimpleTextParser()

	got := p.All(text("SSID: Ground\nPassword: floor0pw\nSSID: Attic\nPassword: floor3pw"), 0)
	if len(got) != 2 {
		t.Fatalf("candidates = %v", got)
	}
	expect.ResponseEquals(t, got[0], pair("Ground", "floor0pw"))
	expect.ResponseEquals(t, got[1], pair("Attic", "floor3pw"))
}

func TestParseResponseIgnoresLabelsInsideText(t *testing.T) {
	p := parser.NewSimpleTextParser()

	got := p.All(text("SSID: 65twenty_guest\nhttps://example.com/?key=abc\nPassword: guest7ad"), 0)
	if len(got) != 1 {
		t.Fatalf("candidates = %v, want one", got)
	}
	expect.ResponseEquals(t, got[0], pair("65twenty_guest", "guest7ad"))

	got = p.All(text("Network: Cafe\nPassword: guest Key: 12345"), 0)
	if len(got) != 1 {
		t.Fatalf("candidates = %v, want one", got)
	}
	expect.ResponseEquals(t, got[0], pair("Cafe", "guest Key: 12345"))
}

func TestParseResponseSkipsNextLineLabel(t *testing.T) {
	p := parser.NewSimpleTextParser()

	got, err := p.First(text("Network:\nPassword: hunter22\nSSID: Attic"))
	expect.NoError(t, err)
	expect.ResponseEquals(t, got, pair("Attic", "hunter22"))
}

func TestParseResponseDeduplicates(t *testing.T) {
	p := parser.NewSimpleTextParser()

	got := p.All(text("SSID: Same\nPassword: same-pass\nSSID: Same\nPassword: same-pass"), 0)
	if len(got) != 1 {
		t.Fatalf("candidates = %v, want one", got)
	}
}

func TestAllLimit(t *testing.T) {
	p := parser.NewSimpleTextParser()

	got := p.All(text("alpha1\nbravo2\ncharlie3\ndelta4"), 2)
	if len(got) != 2 {
		t.Fatalf("candidates = %v, want 2", got)
	}
	expect.ResponseEquals(t, got[1], pair("bravo2", "charlie3"))
}

func TestParseResponseStopsEarly(t *testing.T) {
	p := parser.NewSimpleTextParser()

	n := 0
	for range p.ParseResponse(text("alpha1\nbravo2\ncharlie3\ndelta4")) {
		n++
		break
	}
	expect.Equal(t, "yielded", n, 1)
}

func TestParseResponseNoMatch(t *testing.T) {
	p := parser.NewSimpleTextParser()

	for name, s := range map[string]string{
		"empty":         "",
		"blank lines":   "\n  \n\t\n",
		"prose":         "Thank you for visiting our cafe today",
		"single token":  "Password: onlyhalf",
		"short tokens":  "ab\ncd",
		"label no text": "Password:",
	} {
		t.Run(name, func(t *testing.T) {
			expect.NoCandidates(t, p.ParseResponse(text(s)))

			_, err := p.First(text(s))
			expect.ErrorIs(t, err, parser.ErrNoMatch)
		})
	}
}

func TestPartial(t *testing.T) {
	p := parser.NewSimpleTextParser()

	got := p.Partial(text("Guest WiFi\nPassword: guest7ad"))
	expect.ResponseEquals(t, got, pair("", "guest7ad"))
	if got.Complete() {
		t.Fatal("partial response reported complete")
	}
}
