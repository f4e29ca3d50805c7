package sentiment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "retweet with mention hashtag and link",
			input: "RT @acme: Check this out! #great https://x.co/a",
			want:  "Check this out! great ",
		},
		{
			name:  "mention mid sentence",
			input: "thanks @support for the help",
			want:  "thanks  for the help",
		},
		{
			name:  "hashtag body kept",
			input: "#Monday #blues",
			want:  "Monday blues",
		},
		{
			name:  "retweet marker without attribution",
			input: "RT  great news",
			want:  "great news",
		},
		{
			name:  "http and https links",
			input: "see http://a.io/x and https://b.io/y?z=1 now",
			want:  "see  and  now",
		},
		{
			name:  "case and spacing untouched",
			input: "  LOUD   and\tquiet  ",
			want:  "  LOUD   and\tquiet  ",
		},
		{
			name:  "only noise",
			input: "@a @b #  https://x.co",
			want:  "    ",
		},
		{
			name:  "empty",
			input: "",
			want:  "",
		},
		{
			name:  "removal that exposes a retweet marker",
			input: "RThttp://x.co/1 hello",
			want:  "hello",
		},
		{
			name:  "removal that exposes a link",
			input: "h#ttps://x.co/1 ok",
			want:  " ok",
		},
		{
			name:  "underscore ends a mention",
			input: "@big_co rocks",
			want:  "_co rocks",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	inputs := []string{
		"RT @acme: Check this out! #great https://x.co/a",
		"RRT T x",
		"@@@abc ##tag RT RT  http://http://x",
		"plain text",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func FuzzNormalize(f *testing.F) {
	f.Add("RT @acme: Check this out! #great https://x.co/a")
	f.Add("RRT T @x #y https://z")
	f.Add("")
	f.Add("no noise here")
	f.Add("h#ttp://a.b RThttps://c.d e")

	f.Fuzz(func(t *testing.T, s string) {
		out := Normalize(s)

		for _, p := range noisePatterns {
			if p.MatchString(out) {
				t.Errorf("Normalize(%q) = %q still matches %s", s, out, p)
			}
		}
		if again := Normalize(out); again != out {
			t.Errorf("not idempotent: %q -> %q -> %q", s, out, again)
		}
		if len(out) > len(s) {
			t.Errorf("output longer than input: %q -> %q", s, out)
		}
	})
}
