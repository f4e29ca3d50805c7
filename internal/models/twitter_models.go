package models

import "time"

type TwitterUser struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

type TwitterAPIError struct {
	Title  string `json:"title"`
	Type   string `json:"type"`
	Detail string `json:"detail"`
}

type TwitterUserResponse struct {
	Data   *TwitterUser      `json:"data"`
	Errors []TwitterAPIError `json:"errors"`
}

// TwitterNoteTweet carries the full text of a post longer than 280 characters.
type TwitterNoteTweet struct {
	Text string `json:"text"`
}

type Tweet struct {
	ID        string            `json:"id"`
	Text      string            `json:"text"`
	Lang      string            `json:"lang"`
	CreatedAt time.Time         `json:"created_at"`
	NoteTweet *TwitterNoteTweet `json:"note_tweet,omitempty"`
}

// FullText prefers the untruncated note text when the API returned one.
func (t Tweet) FullText() string {
	if t.NoteTweet != nil && t.NoteTweet.Text != "" {
		return t.NoteTweet.Text
	}
	return t.Text
}

type TwitterTimelineMeta struct {
	ResultCount int    `json:"result_count"`
	NextToken   string `json:"next_token"`
}

type TwitterTimelineResponse struct {
	Data   []Tweet             `json:"data"`
	Meta   TwitterTimelineMeta `json:"meta"`
	Errors []TwitterAPIError   `json:"errors"`
}
