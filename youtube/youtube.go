// youtube/youtube.go
package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	ytdl "github.com/kkdai/youtube/v2"
	"google.golang.org/api/option"
	ytapi "google.golang.org/api/youtube/v3"
)

const maxSearchResults = 5

// Download limits. The downloaded file is re-uploaded and attached to a
// Messenger message, so anything longer than a minute or heavier than 8 MiB
// is refused up front.
const (
	MaxDuration = 60 * time.Second
	MaxFileSize = int64(8 * 1024 * 1024)
)

var (
	ErrTooLong  = errors.New("video exceeds the maximum duration")
	ErrTooBig   = errors.New("video exceeds the maximum file size")
	ErrNoFormat = errors.New("no compatible video format found")
)

// Video is one search result.
type Video struct {
	ID        string
	Title     string
	Thumbnail string
}

// Client wraps the YouTube Data API for searching.
type Client struct {
	svc *ytapi.Service
}

// New builds a search client with an API key. Extra options (custom endpoint
// in tests) pass straight through to the Google API client.
func New(ctx context.Context, apiKey string, opts ...option.ClientOption) (*Client, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := ytapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("error creating youtube service: %v", err)
	}
	return &Client{svc: svc}, nil
}

// Search returns up to five videos matching the query.
func (c *Client) Search(ctx context.Context, query string) ([]Video, error) {
	resp, err := c.svc.Search.List([]string{"snippet"}).
		Q(query).
		Type("video").
		MaxResults(maxSearchResults).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("youtube search failed: %v", err)
	}

	videos := make([]Video, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Id == nil || item.Id.VideoId == "" || item.Snippet == nil {
			continue
		}
		v := Video{
			ID:    item.Id.VideoId,
			Title: item.Snippet.Title,
		}
		if item.Snippet.Thumbnails != nil && item.Snippet.Thumbnails.Default != nil {
			v.Thumbnail = item.Snippet.Thumbnails.Default.Url
		}
		videos = append(videos, v)
	}

	log.Printf("🔎 YouTube search %q: %d videos found", query, len(videos))
	return videos, nil
}

// Downloader fetches video streams for re-upload.
type Downloader struct {
	client      ytdl.Client
	maxDuration time.Duration
	maxFileSize int64
}

func NewDownloader() *Downloader {
	return &Downloader{
		maxDuration: MaxDuration,
		maxFileSize: MaxFileSize,
	}
}

// Download opens the stream of the smallest progressive MP4 rendition of the
// video, enforcing the duration and size limits. The caller owns the reader.
func (d *Downloader) Download(ctx context.Context, videoID string) (io.ReadCloser, int64, error) {
	video, err := d.client.GetVideoContext(ctx, videoID)
	if err != nil {
		return nil, 0, fmt.Errorf("error fetching video %s: %v", videoID, err)
	}

	if video.Duration > d.maxDuration {
		return nil, 0, fmt.Errorf("%w: %s lasts %s (max %s)",
			ErrTooLong, videoID, video.Duration, d.maxDuration)
	}

	format, err := pickFormat(video.Formats)
	if err != nil {
		return nil, 0, err
	}

	if format.ContentLength > d.maxFileSize {
		return nil, 0, fmt.Errorf("%w: %s is %d bytes (max %d)",
			ErrTooBig, videoID, format.ContentLength, d.maxFileSize)
	}

	stream, size, err := d.client.GetStreamContext(ctx, video, format)
	if err != nil {
		return nil, 0, fmt.Errorf("error opening stream for %s: %v", videoID, err)
	}

	// The player response may omit contentLength, in which case the
	// pre-check above saw zero. The size reported with the stream is the
	// real one, when the server reports it at all.
	stream, err = d.enforceSize(videoID, stream, size)
	if err != nil {
		return nil, 0, err
	}

	log.Printf("⬇️ Downloading %s (%s, %d bytes)", videoID, format.QualityLabel, size)
	return stream, size, nil
}

// enforceSize applies the file-size cap once the stream is open. A stream
// whose size is still unknown gets capped while it is read instead.
func (d *Downloader) enforceSize(videoID string, stream io.ReadCloser, size int64) (io.ReadCloser, error) {
	if size > d.maxFileSize {
		stream.Close()
		return nil, fmt.Errorf("%w: %s stream is %d bytes (max %d)",
			ErrTooBig, videoID, size, d.maxFileSize)
	}
	if size <= 0 {
		return &cappedReader{rc: stream, remaining: d.maxFileSize}, nil
	}
	return stream, nil
}

// cappedReader fails a read with ErrTooBig once more bytes have come
// through than the cap allows.
type cappedReader struct {
	rc        io.ReadCloser
	remaining int64
}

func (c *cappedReader) Read(p []byte) (int, error) {
	n, err := c.rc.Read(p)
	c.remaining -= int64(n)
	if c.remaining < 0 {
		return n, ErrTooBig
	}
	return n, err
}

func (c *cappedReader) Close() error {
	return c.rc.Close()
}

// pickFormat selects the lowest-resolution progressive MP4. Progressive
// formats carry audio and video in a single stream, which is what a Messenger
// attachment needs.
func pickFormat(formats ytdl.FormatList) (*ytdl.Format, error) {
	var best *ytdl.Format
	for i := range formats {
		f := &formats[i]
		if f.AudioChannels == 0 {
			continue
		}
		if !strings.HasPrefix(f.MimeType, "video/mp4") {
			continue
		}
		if best == nil || f.Height < best.Height {
			best = f
		}
	}
	if best == nil {
		return nil, ErrNoFormat
	}
	return best, nil
}
