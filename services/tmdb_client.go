package services

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// TMDBClient talks to the external movie metadata provider. Hydration is
// best-effort: callers treat a failure here as a warning, never as a reason
// to fail the write that triggered it.
type TMDBClient struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

type TMDBMovie struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	ReleaseDate string `json:"release_date"`
	Overview    string `json:"overview"`
	PosterPath  string `json:"poster_path"`
}

type TMDBPerson struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	ProfilePath string `json:"profile_path"`
}

type TMDBCredit struct {
	CreditID   string `json:"credit_id"`
	PersonID   int64  `json:"id"`
	Name       string `json:"name"`
	Department string `json:"department"`
	Job        string `json:"job"`
	Character  string `json:"character"`
}

type TMDBCredits struct {
	Cast []TMDBCredit `json:"cast"`
	Crew []TMDBCredit `json:"crew"`
}

func NewTMDBClient(baseURL, token string) *TMDBClient {
	if baseURL == "" {
		baseURL = "https://api.themoviedb.org/3"
	}
	return &TMDBClient{
		BaseURL: baseURL,
		Token:   token,
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Enabled reports whether a provider token is configured.
func (c *TMDBClient) Enabled() bool {
	return c != nil && c.Token != ""
}

func (c *TMDBClient) get(path string, out interface{}) error {
	url := fmt.Sprintf("%s%s", c.BaseURL, path)

	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		log.Printf("[TMDB] GET %s returned %d: %s", path, resp.StatusCode, string(body))
		return fmt.Errorf("tmdb request failed: %d", resp.StatusCode)
	}

	return json.Unmarshal(body, out)
}

func (c *TMDBClient) GetMovie(tmdbID int64) (*TMDBMovie, error) {
	var out TMDBMovie
	if err := c.get(fmt.Sprintf("/movie/%d", tmdbID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *TMDBClient) GetPerson(tmdbID int64) (*TMDBPerson, error) {
	var out TMDBPerson
	if err := c.get(fmt.Sprintf("/person/%d", tmdbID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *TMDBClient) GetMovieCredits(tmdbID int64) (*TMDBCredits, error) {
	var out TMDBCredits
	if err := c.get(fmt.Sprintf("/movie/%d/credits", tmdbID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PosterURL turns a TMDB poster path into a fetchable image URL.
func PosterURL(posterPath string) string {
	if posterPath == "" {
		return ""
	}
	return "https://image.tmdb.org/t/p/w500" + posterPath
}
