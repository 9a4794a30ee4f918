package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"os"
)

// Seeds a local server with a demo session, one story and two tasks, then
// prints the session id. Usage: go run scripts/seed-session.go [base-url]
func main() {
	base := "http://localhost:8080"
	if len(os.Args) > 1 {
		base = os.Args[1]
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		fail(err)
	}
	client := &http.Client{Jar: jar}

	var created struct {
		Session struct {
			ID string `json:"id"`
		} `json:"session"`
	}
	if err := post(client, base+"/v1/sessions", map[string]string{
		"name":      "demo session",
		"adminName": "admin",
	}, &created); err != nil {
		fail(err)
	}

	sessionURL := base + "/v1/sessions/" + created.Session.ID

	var story struct {
		ID string `json:"id"`
	}
	if err := post(client, sessionURL+"/stories", map[string]string{
		"title": "demo story",
	}, &story); err != nil {
		fail(err)
	}

	for _, title := range []string{"first task", "second task"} {
		if err := post(client, sessionURL+"/stories/"+story.ID+"/tasks", map[string]string{
			"title": title,
		}, nil); err != nil {
			fail(err)
		}
	}

	fmt.Println(created.Session.ID)
}

func post(client *http.Client, url string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	resp, err := client.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s: unexpected status %d", url, resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
