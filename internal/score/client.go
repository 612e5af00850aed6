package score

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/calvinwijaya/minigames-be/internal/remote"
)

type highScoreResponse struct {
	Result    bool   `json:"result"`
	HighScore int    `json:"highScore"`
	Message   string `json:"message"`
}

type postRequest struct {
	Game  string `json:"game"`
	Score int    `json:"score"`
}

type postResponse struct {
	Result  bool   `json:"result"`
	Message string `json:"message"`
}

// Client talks to the external score service
type Client struct {
	remote *remote.Client
}

func NewClient(cfg remote.Config) *Client {
	return &Client{remote: remote.NewClient(cfg)}
}

// HighScore fetches the player's best score for game. A record the service
// does not have (result false) is reported as zero.
func (c *Client) HighScore(ctx context.Context, token, game string) (int, error) {
	var resp highScoreResponse
	if err := c.remote.Do(ctx, http.MethodGet, "users/highScore/"+url.PathEscape(game), token, nil, &resp); err != nil {
		return 0, fmt.Errorf("score: fetch high score for %s: %w", game, err)
	}
	if !resp.Result {
		return 0, nil
	}
	return resp.HighScore, nil
}

// PostHighScore submits a new best score for game
func (c *Client) PostHighScore(ctx context.Context, token, game string, score int) (bool, error) {
	var resp postResponse
	body := postRequest{Game: game, Score: score}
	if err := c.remote.Do(ctx, http.MethodPost, "users/highScore", token, body, &resp); err != nil {
		return false, fmt.Errorf("score: post high score for %s: %w", game, err)
	}
	return resp.Result, nil
}
