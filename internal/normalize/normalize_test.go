package normalize

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"html paragraph", "<p>Congrats! Your interview with Acme for Backend Engineer passed.</p>", "Congrats! Your interview with Acme for Backend Engineer passed."},
		{"url removed", "Apply at https://jobs.example.com/123 today", "Apply at today"},
		{"entities", "Tom &amp; Jerry &#39;s 5 &lt; 10", "Tom & Jerry 's 5 < 10"},
		{"decoded comparison kept", "salary 5 &lt; 10 and 20 &gt; 3 ok", "salary 5 < 10 and 20 > 3 ok"},
		{"keyword between brackets kept", "offer &lt; 3 days, interview passed &gt; final", "offer < 3 days, interview passed > final"},
		{"decoded tag-shaped text removed", "Tom &lt;team&gt;", "Tom"},
		{"comment and self closing", "a<!-- note --><br/>b</p>", "ab"},
		{"smart quotes", "We’re “excited”", "We're 'excited'"},
		{"non ascii dropped", "Café résumé ☃", "Caf rsum"},
		{"whitespace collapsed", "  line one\n\n\tline two \r\n", "line one line two"},
		{"parentheses removed", "Backend (Platform) Engineer", "Backend Platform Engineer"},
		{"empty", "", ""},
		{"only markup", "<div><br/></div>", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	samples := []string{
		"<p>Congrats! Your interview with Acme passed.</p>",
		"&amp;lt;b&amp;gt;bold&amp;lt;/b&amp;gt;",
		"h(ttp://hidden.example.com) text",
		"a ( b ) c",
		"mixed spaces and’quotes",
		"<<b>>nested<</b>>",
		"(http://x.y) (z)",
		"&lt;https://example.com&gt; visit",
		"salary 5 &lt; 10 and 20 &gt; 3 ok",
		"a <<b>> c",
	}

	for _, s := range samples {
		once := Normalize(s)
		assert.Equal(t, once, Normalize(once), "input %q", s)
	}
}

func TestNormalizeRemovesURLsAndTags(t *testing.T) {
	out := Normalize("see http://x and <b>this</b>")
	assert.NotContains(t, out, "http://x")
	assert.NotContains(t, out, "<b>")
	assert.Equal(t, "see and this", out)
}

func enc(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func TestBodyText(t *testing.T) {
	t.Run("single part", func(t *testing.T) {
		assert.Equal(t, "hello", BodyText(Part{MimeType: "text/plain", Data: enc("hello")}))
	})

	t.Run("unpadded base64url", func(t *testing.T) {
		data := base64.RawURLEncoding.EncodeToString([]byte("ok??>>"))
		assert.Equal(t, "ok??>>", BodyText(Part{Data: data}))
	})

	t.Run("multipart prefers text/plain", func(t *testing.T) {
		p := Part{
			MimeType: "multipart/mixed",
			Parts: []Part{
				{MimeType: "text/plain", Data: enc("first ")},
				{MimeType: "text/html", Data: enc("<p>ignored</p>")},
				{MimeType: "multipart/alternative", Parts: []Part{
					{MimeType: "text/plain", Data: enc("second")},
					{MimeType: "text/html", Data: enc("<b>ignored</b>")},
				}},
			},
		}
		assert.Equal(t, "first second", BodyText(p))
	})

	t.Run("only one level of alternative", func(t *testing.T) {
		p := Part{Parts: []Part{
			{MimeType: "multipart/alternative", Parts: []Part{
				{MimeType: "multipart/alternative", Parts: []Part{
					{MimeType: "text/plain", Data: enc("too deep")},
				}},
			}},
		}}
		assert.Empty(t, BodyText(p))
	})

	t.Run("garbage data", func(t *testing.T) {
		assert.Empty(t, BodyText(Part{Data: "!!!not base64!!!"}))
	})
}
