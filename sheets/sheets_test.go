// sheets_test.go
package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

func newTestService(t *testing.T, handler http.HandlerFunc) (*Service, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)

	svc, err := New(context.Background(), nil, "sheet-id", "",
		option.WithEndpoint(srv.URL),
		option.WithAPIKey("test-key"))
	if err != nil {
		srv.Close()
		t.Fatalf("New returned error: %v", err)
	}
	return svc, srv
}

func TestAddRequestFollowsHeaderOrder(t *testing.T) {
	var appended *sheetsapi.ValueRange

	svc, srv := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.Method == "GET" && strings.HasSuffix(r.URL.Path, "/values/Demandes!1:1"):
			// Header row with a custom column and shuffled order.
			fmt.Fprint(w, `{"values": [["Date", "Title", "user_id", "Commentaire", "status"]]}`)
		case r.Method == "POST" && strings.HasSuffix(r.URL.Path, ":append"):
			if got := r.URL.Query().Get("valueInputOption"); got != "USER_ENTERED" {
				t.Errorf("valueInputOption = %q, want USER_ENTERED", got)
			}
			var vr sheetsapi.ValueRange
			if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
				t.Errorf("decoding append body: %v", err)
				http.Error(w, "bad payload", http.StatusBadRequest)
				return
			}
			appended = &vr
			fmt.Fprint(w, `{}`)
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
		}
	})
	defer srv.Close()

	err := svc.AddRequest(context.Background(), "user-1", "Jean Dupont", MovieRequest{
		Title:   "Breaking Bad",
		Type:    "série",
		ImdbID:  "tt0903747",
		ImdbURL: "https://www.imdb.com/title/tt0903747/",
		Year:    "2008",
	})
	if err != nil {
		t.Fatalf("AddRequest returned error: %v", err)
	}

	if appended == nil {
		t.Fatal("no row was appended")
	}
	if len(appended.Values) != 1 {
		t.Fatalf("appended %d rows, want 1", len(appended.Values))
	}

	row := appended.Values[0]
	if len(row) != 5 {
		t.Fatalf("row has %d cells, want 5", len(row))
	}

	date, ok := row[0].(string)
	if !ok || date == "" {
		t.Errorf("date cell = %v, want non-empty string", row[0])
	} else if _, err := time.Parse(timeLayout, date); err != nil {
		t.Errorf("date cell %q does not match layout %q", date, timeLayout)
	}

	if row[1] != "Breaking Bad" {
		t.Errorf("title cell = %v, want %q", row[1], "Breaking Bad")
	}
	if row[2] != "user-1" {
		t.Errorf("user_id cell = %v, want %q", row[2], "user-1")
	}
	if row[3] != "" {
		t.Errorf("unknown column cell = %v, want empty", row[3])
	}
	if row[4] != "Demandé" {
		t.Errorf("status cell = %v, want %q", row[4], "Demandé")
	}
}

func TestAddRequestEmptyWorksheetUsesDefaultColumns(t *testing.T) {
	var appended *sheetsapi.ValueRange

	svc, srv := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.Method == "GET":
			fmt.Fprint(w, `{}`)
		case r.Method == "POST" && strings.HasSuffix(r.URL.Path, ":append"):
			var vr sheetsapi.ValueRange
			if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
				t.Errorf("decoding append body: %v", err)
				http.Error(w, "bad payload", http.StatusBadRequest)
				return
			}
			appended = &vr
			fmt.Fprint(w, `{}`)
		}
	})
	defer srv.Close()

	err := svc.AddRequest(context.Background(), "user-1", "Jean", MovieRequest{Title: "Dune"})
	if err != nil {
		t.Fatalf("AddRequest returned error: %v", err)
	}

	if appended == nil {
		t.Fatal("no row was appended")
	}
	row := appended.Values[0]
	if len(row) != len(defaultColumns) {
		t.Fatalf("row has %d cells, want %d", len(row), len(defaultColumns))
	}
	if row[3] != "Dune" {
		t.Errorf("title cell = %v, want %q", row[3], "Dune")
	}
	if row[8] != "Demandé" {
		t.Errorf("status cell = %v, want %q", row[8], "Demandé")
	}
}

func TestUserRequestsFiltersByUser(t *testing.T) {
	svc, srv := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"values": [
			["date", "user_id", "title", "year"],
			["2026-01-01 10:00:00", "user-1", "Dune", 2021],
			["2026-01-02 11:00:00", "user-2", "Alien", 1979],
			["2026-01-03 12:00:00", "user-1", "Arrival"]
		]}`)
	})
	defer srv.Close()

	requests, err := svc.UserRequests(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("UserRequests returned error: %v", err)
	}

	if len(requests) != 2 {
		t.Fatalf("got %d requests, want 2", len(requests))
	}
	if requests[0]["title"] != "Dune" {
		t.Errorf("title = %q, want %q", requests[0]["title"], "Dune")
	}
	if requests[0]["year"] != "2021" {
		t.Errorf("year = %q, want %q", requests[0]["year"], "2021")
	}
	// Short row: missing trailing cells read as empty.
	if requests[1]["year"] != "" {
		t.Errorf("year = %q, want empty", requests[1]["year"])
	}
}
