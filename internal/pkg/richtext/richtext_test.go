package richtext

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlainTextFromDelta(t *testing.T) {
	body := `{"ops":[{"insert":"Hello "},{"insert":{"image":"https://x.io/a.png"}},{"insert":"world\n"}]}`

	assert.Equal(t, "Hello world", PlainText(body))
	assert.Equal(t, "Hello world", PlainText(url.PathEscape(body)))
}

func TestPlainTextFromMarkdown(t *testing.T) {
	body := "# Title\n\nSome **bold** text & [a link](https://example.com)."

	assert.Equal(t, "Title Some bold text & a link.", PlainText(body))
}

func TestPlainTextFallsBackOnBrokenDelta(t *testing.T) {
	assert.Equal(t, "{not json", PlainText("{not json"))
}

func TestExcerptTrims(t *testing.T) {
	long := strings.Repeat("ab ", 100)

	got := Excerpt(long, ExcerptLength)

	assert.True(t, strings.HasSuffix(got, "…"))
	assert.LessOrEqual(t, len([]rune(got)), ExcerptLength+1)
	assert.Equal(t, "short", Excerpt("short", ExcerptLength))
}

func TestFirstImageURL(t *testing.T) {
	got, ok := FirstImageURL("look ![pic](https://cdn.example.com/img/cat.PNG) and https://x.io/b.jpg")
	assert.True(t, ok)
	assert.Equal(t, "https://cdn.example.com/img/cat.PNG", got)

	_, ok = FirstImageURL("no images here https://example.com/page")
	assert.False(t, ok)
}

func TestDecodeKeepsInvalidEscapes(t *testing.T) {
	assert.Equal(t, "Hello World", Decode("Hello%20World"))
	assert.Equal(t, "100%", Decode("100%"))
}
