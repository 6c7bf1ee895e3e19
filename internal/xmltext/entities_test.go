package xmltext

import (
	"testing"

	"github.com/danmuck/sxmlstream/internal/testutil/testlog"
)

func TestDecodeEntitiesPredefinedAndNumeric(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		in   string
		want string
	}{
		{in: "alice &lt; bob&#x2019;s mom &amp; '3 &gt; 1' &#233;&#224;&#8364;", want: "alice < bob’s mom & '3 > 1' éà€"},
		{in: "&#233;&#224;&#8364;", want: "éà€"},
		{in: "&#x2019;", want: "’"},
		{in: "&#X2019;&#x00e9;&#xE9;", want: "’éé"},
		{in: "&quot;q&quot; &apos;a&apos;", want: `"q" 'a'`},
		{in: "no entities here", want: "no entities here"},
		{in: "bad\uFFFDchar", want: "bad char"},
		{in: "€ stays € &#65;", want: "€ stays € A"},
	}
	for _, tc := range cases {
		if got := DecodeEntities(tc.in); got != tc.want {
			t.Fatalf("decode %q: got=%q want=%q", tc.in, got, tc.want)
		}
	}
}

func TestDecodeEntitiesMalformedReferencesKeptVerbatim(t *testing.T) {
	testlog.Start(t)
	cases := []string{
		"&#;",
		"&#x;",
		"&#12",
		"&#xZZ;",
		"&#12a;",
		"&#xD800;",
		"&#99999999999;",
		"& alone",
		"&unknown;",
		"trailing &",
	}
	for _, in := range cases {
		if got := DecodeEntities(in); got != in {
			t.Fatalf("decode %q: expected verbatim, got=%q", in, got)
		}
	}
}

func TestDecodeEntitiesOffsetsAcrossMultipleReferences(t *testing.T) {
	testlog.Start(t)
	in := "a&#1234;b&#x10348;c&#65;d"
	want := "a\u04d2b\U00010348cAd"
	if got := DecodeEntities(in); got != want {
		t.Fatalf("got=%q want=%q", got, want)
	}
}

func TestEncodeEntitiesBaseCharacters(t *testing.T) {
	testlog.Start(t)
	got := EncodeEntities(`a & b < c > d "e" 'f'`, false)
	want := "a &amp; b &lt; c &gt; d &quot;e&quot; &apos;f&apos;"
	if got != want {
		t.Fatalf("got=%q want=%q", got, want)
	}
	if got := EncodeEntities("é€", false); got != "é€" {
		t.Fatalf("non-ascii must pass through without the flag, got=%q", got)
	}
}

func TestEncodeEntitiesNonASCII(t *testing.T) {
	testlog.Start(t)
	got := EncodeEntities("é&€’\u0080", true)
	want := "&#xe9;&amp;&#x20ac;&#x2019;\u0080"
	if got != want {
		t.Fatalf("got=%q want=%q", got, want)
	}
	if back := DecodeEntities(got); back != "é&€’\u0080" {
		t.Fatalf("decode back: %q", back)
	}
}

func TestEntitiesRoundTripASCII(t *testing.T) {
	testlog.Start(t)
	inputs := []string{
		`<pippo p1='x'>"3 > 1" & 'y'</pippo>`,
		"&lt; literal",
		"&#233; literal",
		"plain",
		"",
	}
	for _, in := range inputs {
		if got := DecodeEntities(EncodeEntities(in, false)); got != in {
			t.Fatalf("round trip %q: got=%q", in, got)
		}
	}
}
