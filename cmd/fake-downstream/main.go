// fake-downstream stands in for the external sync service during local
// testing. It accepts the task projection on /tasks and can be made flaky
// with FAIL_FIRST_N to exercise the dispatcher's retry loop.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
)

var (
	failFirstN  = 0
	reqCount    atomic.Int64
	expectToken = ""
)

func main() {
	if v := os.Getenv("FAIL_FIRST_N"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			failFirstN = n
		}
	}
	if v := os.Getenv("EXPECT_API_KEY"); v != "" {
		expectToken = v
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	mux.HandleFunc("/tasks", handleTask)

	addr := ":8081"
	if v := os.Getenv("PORT"); v != "" {
		addr = ":" + v
	}
	log.Printf("fake-downstream listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, mux))
}

func handleTask(w http.ResponseWriter, r *http.Request) {
	n := reqCount.Add(1)
	b, _ := io.ReadAll(r.Body)
	defer r.Body.Close()

	if expectToken != "" {
		got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if got != expectToken {
			log.Printf("fake-downstream rejected bad token %q", got)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	// Simulate flakiness: first N requests -> 500
	if n <= int64(failFirstN) {
		log.Printf("FAILING (%d/%d) body=%s", n, failFirstN, truncate(string(b), 160))
		http.Error(w, "temporary failure", http.StatusInternalServerError)
		return
	}

	var task map[string]any
	if err := json.Unmarshal(b, &task); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	log.Printf("fake-downstream OK task=%v body=%q", task["id"], truncate(string(b), 160))
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"synced":true}`))
}

// truncate shortens s for log lines.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return fmt.Sprintf("%s...", s[:n])
}
