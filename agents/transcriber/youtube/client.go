package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"

	"transcript-stack/shared/config"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// captions.download needs force-ssl; readonly only covers captions.list
const captionScope = "https://www.googleapis.com/auth/youtube.force-ssl"

// ErrNoCaptions is returned when a video has no caption track at all
var ErrNoCaptions = errors.New("video has no caption tracks")

// Captions is a downloaded caption track in SubRip form
type Captions struct {
	VideoID  string
	Title    string
	Language string
	SRT      []byte
}

// Filename is the name a caption import is stored under
func (c *Captions) Filename() string {
	title := strings.TrimSpace(c.Title)
	if title == "" {
		title = c.VideoID
	}
	return title + ".srt"
}

type Client struct {
	service  *youtube.Service
	language string
}

func NewClient(ctx context.Context, cfg *config.YouTubeConfig) (*Client, error) {
	oauthConfig := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       []string{captionScope},
		Endpoint:     google.Endpoint,
	}

	token, err := loadToken(cfg.TokenFile, func() (*oauth2.Token, error) {
		return deviceFlow(ctx, oauthConfig)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get OAuth token: %w", err)
	}

	tokenSource := &tokenSaver{
		config:    oauthConfig,
		token:     token,
		tokenFile: cfg.TokenFile,
	}

	service, err := youtube.NewService(ctx, option.WithHTTPClient(oauth2.NewClient(ctx, tokenSource)))
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube service: %w", err)
	}

	return &Client{service: service, language: cfg.Language}, nil
}

// FetchCaptions downloads the preferred caption track of a video as SRT.
// ref may be a bare video ID or any common YouTube URL form.
func (c *Client) FetchCaptions(ctx context.Context, ref string) (*Captions, error) {
	videoID, err := ParseVideoID(ref)
	if err != nil {
		return nil, err
	}

	list, err := c.service.Captions.List([]string{"snippet"}, videoID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list captions for %s: %w", videoID, err)
	}

	track := pickTrack(list.Items, c.language)
	if track == nil {
		return nil, fmt.Errorf("%s: %w", videoID, ErrNoCaptions)
	}

	resp, err := c.service.Captions.Download(track.Id).Tfmt("srt").Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("failed to download caption track %s: %w", track.Id, err)
	}
	defer resp.Body.Close()

	srt, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read caption track %s: %w", track.Id, err)
	}

	out := &Captions{VideoID: videoID, SRT: srt}
	if track.Snippet != nil {
		out.Language = track.Snippet.Language
	}

	videos, err := c.service.Videos.List([]string{"snippet"}).Id(videoID).Context(ctx).Do()
	if err == nil && len(videos.Items) > 0 && videos.Items[0].Snippet != nil {
		out.Title = videos.Items[0].Snippet.Title
	}

	return out, nil
}

// pickTrack prefers a published manual track in the wanted language, then an
// automatic one in that language, then any manual track, then the first track.
func pickTrack(items []*youtube.Caption, language string) *youtube.Caption {
	var usable []*youtube.Caption
	for _, it := range items {
		if it == nil || it.Snippet == nil || it.Snippet.IsDraft {
			continue
		}
		usable = append(usable, it)
	}
	if len(usable) == 0 {
		return nil
	}

	matches := func(it *youtube.Caption) bool {
		lang := strings.ToLower(it.Snippet.Language)
		want := strings.ToLower(language)
		return want != "" && (lang == want || strings.HasPrefix(lang, want+"-"))
	}
	manual := func(it *youtube.Caption) bool {
		return !strings.EqualFold(it.Snippet.TrackKind, "asr")
	}

	for _, pred := range []func(*youtube.Caption) bool{
		func(it *youtube.Caption) bool { return manual(it) && matches(it) },
		matches,
		manual,
	} {
		for _, it := range usable {
			if pred(it) {
				return it
			}
		}
	}
	return usable[0]
}

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ParseVideoID accepts an 11 character video ID or a watch, youtu.be, shorts,
// embed or live URL.
func ParseVideoID(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if videoIDPattern.MatchString(ref) {
		return ref, nil
	}

	if !strings.Contains(ref, "://") {
		ref = "https://" + ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid video reference %q: %w", ref, err)
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")

	var id string
	switch host {
	case "youtu.be":
		id = segments[0]
	case "youtube.com", "music.youtube.com", "youtube-nocookie.com":
		if v := u.Query().Get("v"); v != "" {
			id = v
		} else if len(segments) == 2 {
			switch segments[0] {
			case "shorts", "embed", "live", "v":
				id = segments[1]
			}
		}
	}

	if !videoIDPattern.MatchString(id) {
		return "", fmt.Errorf("invalid video reference %q", ref)
	}
	return id, nil
}
