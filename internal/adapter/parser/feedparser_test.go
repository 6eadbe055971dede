package parser

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestParser(now time.Time) *FeedParser {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := NewFeedParser(logger)
	p.now = func() time.Time { return now }
	return p
}

func TestFeedParser_Parse_RSS(t *testing.T) {
	parser := newTestParser(time.Now())

	xmlData := `<?xml version="1.0"?>
	<rss version="2.0">
	<channel>
	<title>Test Feed</title>
	<link>https://example.com</link>
	<description>Test Description</description>
	<item>
	<title>Item 1</title>
	<link>https://example.com/item1</link>
	<description><![CDATA[<p>Item 1 <b>Description</b> &amp; more</p>]]></description>
	<pubDate>Mon, 02 Jan 2006 15:04:05 +0000</pubDate>
	</item>
	<item>
	<title>Item 2</title>
	<link>https://example.com/item2</link>
	<description>Item 2 Description</description>
	<pubDate>Tue, 03 Jan 2006 12:00:00 GMT</pubDate>
	</item>
	</channel>
	</rss>`

	feed, err := parser.Parse(context.Background(), strings.NewReader(xmlData))

	require.NoError(t, err)
	require.NotNil(t, feed)

	assert.Equal(t, "Test Feed", feed.Title)
	assert.Equal(t, "https://example.com", feed.Link)
	assert.Equal(t, "Test Description", feed.Description)
	require.Len(t, feed.Items, 2)

	assert.Equal(t, "Item 1", feed.Items[0].Title)
	assert.Equal(t, "https://example.com/item1", feed.Items[0].Link)
	assert.Equal(t, "Item 1 Description & more", feed.Items[0].Description)
	assert.WithinDuration(t, time.Date(2006, 1, 2, 15, 4, 5, 0, time.UTC), feed.Items[0].PubDate, time.Second)

	assert.Equal(t, "Item 2", feed.Items[1].Title)
	assert.WithinDuration(t, time.Date(2006, 1, 3, 12, 0, 0, 0, time.UTC), feed.Items[1].PubDate, time.Second)
}

func TestFeedParser_Parse_Atom(t *testing.T) {
	parser := newTestParser(time.Now())

	atom := `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom Feed</title>
  <link href="https://atom.example/"/>
  <updated>2024-05-01T10:00:00Z</updated>
  <entry>
    <title>Atom entry</title>
    <link href="https://atom.example/entry"/>
    <id>urn:1</id>
    <updated>2024-05-01T09:00:00Z</updated>
    <content type="html">&lt;p&gt;Body text&lt;/p&gt;</content>
  </entry>
</feed>`

	feed, err := parser.Parse(context.Background(), strings.NewReader(atom))

	require.NoError(t, err)
	require.Len(t, feed.Items, 1)
	item := feed.Items[0]
	assert.Equal(t, "Atom entry", item.Title)
	assert.Equal(t, "https://atom.example/entry", item.Link)
	assert.Equal(t, "Body text", item.Description)
	assert.Equal(t, time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), item.PubDate)
}

func TestFeedParser_Parse_SkipsIncompleteAndDefaultsDate(t *testing.T) {
	now := time.Date(2025, 5, 4, 18, 0, 0, 0, time.UTC)
	parser := newTestParser(now)

	xmlData := `<rss version="2.0"><channel><title>T</title>
	<item><title>No link</title></item>
	<item><link>https://example.com/no-title</link></item>
	<item><title>Undated</title><link>https://example.com/undated</link></item>
	</channel></rss>`

	feed, err := parser.Parse(context.Background(), strings.NewReader(xmlData))

	require.NoError(t, err)
	require.Len(t, feed.Items, 1)
	assert.Equal(t, "Undated", feed.Items[0].Title)
	assert.Equal(t, now, feed.Items[0].PubDate)
}

func TestFeedParser_Parse_Malformed(t *testing.T) {
	parser := newTestParser(time.Now())

	feed, err := parser.Parse(context.Background(), strings.NewReader("this is not a feed"))

	assert.Error(t, err)
	assert.Nil(t, feed)
	assert.True(t, errors.Is(err, ErrMalformedFeed))
}

func TestFeedParser_Parse_ContextCancelled(t *testing.T) {
	parser := newTestParser(time.Now())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	feed, err := parser.Parse(ctx, strings.NewReader(`<rss><channel><title>T</title></channel></rss>`))

	assert.True(t, errors.Is(err, context.Canceled))
	assert.Nil(t, feed)
}

func TestFeedParser_Parse_EmptyFeed(t *testing.T) {
	parser := newTestParser(time.Now())
	xmlData := `
	<rss version="2.0">
	<channel>
	<title>Empty Feed</title>
	<link>https://example.com</link>
	<description>Empty Description</description>
	</channel>
	</rss>`

	feed, err := parser.Parse(context.Background(), strings.NewReader(xmlData))

	require.NoError(t, err)
	assert.Equal(t, "Empty Feed", feed.Title)
	assert.Empty(t, feed.Items)
}

func TestCleanTextAndTruncate(t *testing.T) {
	assert.Equal(t, "a b c", CleanText("  a\n\t<br/> b   c "))
	assert.Equal(t, "", CleanText(""))

	long := strings.Repeat("é", 600)
	got := truncate(long, maxSummaryRunes)
	assert.Equal(t, maxSummaryRunes, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "…"))
}
