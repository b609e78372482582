package x

import "time"

type createPostRequest struct {
	Text  string     `json:"text"`
	Poll  *pollSpec  `json:"poll,omitempty"`
	Media *mediaSpec `json:"media,omitempty"`
	Reply *replySpec `json:"reply,omitempty"`
}

type pollSpec struct {
	Options         []string `json:"options"`
	DurationMinutes int      `json:"duration_minutes"`
}

type mediaSpec struct {
	MediaIDs []string `json:"media_ids"`
}

type replySpec struct {
	InReplyToTweetID string `json:"in_reply_to_tweet_id"`
}

type createPostResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

type meResponse struct {
	Data user `json:"data"`
}

type user struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

type tweet struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	AuthorID  string    `json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
}

type mentionsResponse struct {
	Data     []tweet `json:"data"`
	Includes struct {
		Users []user `json:"users"`
	} `json:"includes"`
	Meta struct {
		ResultCount int    `json:"result_count"`
		NewestID    string `json:"newest_id"`
		OldestID    string `json:"oldest_id"`
	} `json:"meta"`
}

// apiError is the problem document X returns on failure.
type apiError struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Type   string `json:"type"`
	Status int    `json:"status"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (e apiError) message() string {
	switch {
	case e.Detail != "":
		return e.Detail
	case len(e.Errors) > 0:
		return e.Errors[0].Message
	}
	return e.Title
}
