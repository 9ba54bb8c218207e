package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const apiBase = "https://www.googleapis.com/youtube/v3"

type SearchItem struct {
	VideoID      string `json:"videoId"`
	Title        string `json:"title"`
	ThumbnailURL string `json:"thumbnailUrl"`
	ChannelTitle string `json:"channelTitle"`
	Duration     string `json:"duration"`
}

type Client struct {
	apiKey     string
	httpClient *http.Client
}

func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			ChannelTitle string `json:"channelTitle"`
			Thumbnails   struct {
				Medium  struct{ URL string } `json:"medium"`
				Default struct{ URL string } `json:"default"`
			} `json:"thumbnails"`
		} `json:"snippet"`
	} `json:"items"`
}

type videosResponse struct {
	Items []struct {
		ID             string `json:"id"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
	} `json:"items"`
}

// SearchKaraoke searches YouTube for karaoke versions of the query, then
// resolves video durations with a second request.
func (c *Client) SearchKaraoke(ctx context.Context, query string) ([]SearchItem, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("youtube: missing API key")
	}

	params := url.Values{}
	params.Add("part", "snippet")
	params.Add("type", "video")
	params.Add("maxResults", "10")
	params.Add("q", query+" karaoke")
	params.Add("key", c.apiKey)

	var searchResp searchResponse
	if err := c.getJSON(ctx, apiBase+"/search?"+params.Encode(), &searchResp); err != nil {
		return nil, fmt.Errorf("youtube: search request failed: %w", err)
	}

	videoIDs := make([]string, 0, len(searchResp.Items))
	for _, item := range searchResp.Items {
		if item.ID.VideoID != "" {
			videoIDs = append(videoIDs, item.ID.VideoID)
		}
	}
	if len(videoIDs) == 0 {
		return []SearchItem{}, nil
	}

	detailParams := url.Values{}
	detailParams.Add("part", "contentDetails")
	detailParams.Add("id", strings.Join(videoIDs, ","))
	detailParams.Add("key", c.apiKey)

	var videosResp videosResponse
	if err := c.getJSON(ctx, apiBase+"/videos?"+detailParams.Encode(), &videosResp); err != nil {
		return nil, fmt.Errorf("youtube: video details request failed: %w", err)
	}

	durations := make(map[string]string, len(videosResp.Items))
	for _, item := range videosResp.Items {
		durations[item.ID] = formatISO8601Duration(item.ContentDetails.Duration)
	}

	results := make([]SearchItem, 0, len(searchResp.Items))
	for _, item := range searchResp.Items {
		if item.ID.VideoID == "" {
			continue
		}
		thumbnail := item.Snippet.Thumbnails.Medium.URL
		if thumbnail == "" {
			thumbnail = item.Snippet.Thumbnails.Default.URL
		}
		duration, ok := durations[item.ID.VideoID]
		if !ok {
			duration = "0:00"
		}
		results = append(results, SearchItem{
			VideoID:      item.ID.VideoID,
			Title:        item.Snippet.Title,
			ThumbnailURL: thumbnail,
			ChannelTitle: item.Snippet.ChannelTitle,
			Duration:     duration,
		})
	}
	return results, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

var iso8601Duration = regexp.MustCompile(`PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?`)

// formatISO8601Duration renders "PT1H2M3S" as "1:02:03" and "PT4M5S" as "4:05".
func formatISO8601Duration(iso string) string {
	match := iso8601Duration.FindStringSubmatch(iso)
	if match == nil {
		return "0:00"
	}

	hours, _ := strconv.Atoi(match[1])
	minutes, _ := strconv.Atoi(match[2])
	seconds, _ := strconv.Atoi(match[3])

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", hours*60+minutes, seconds)
}
