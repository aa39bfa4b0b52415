package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/galdino/barber-booking/internal/config"
	"github.com/galdino/barber-booking/internal/db"
)

// simulate hammers the booking API with concurrent requests for identical
// slots and then checks the database for overlapping confirmed appointments.
// One winner per slot and zero overlaps means the write path holds up.

type simFlags struct {
	apiBase string
	tenant  string
	workers int
	rounds  int
	date    string
}

type staffEntry struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Services []struct {
		ServiceID string `json:"service_id"`
	} `json:"services"`
}

type slotEntry struct {
	Datetime string `json:"datetime"`
	Duration int    `json:"duration"`
}

type counters struct {
	created  atomic.Int64
	conflict atomic.Int64
	other    atomic.Int64
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	var f simFlags
	flag.StringVar(&f.apiBase, "api", "http://127.0.0.1:8080", "API base URL")
	flag.StringVar(&f.tenant, "tenant", "demo-barbershop", "tenant slug")
	flag.IntVar(&f.workers, "workers", 8, "concurrent workers per slot")
	flag.IntVar(&f.rounds, "rounds", 5, "number of slots to contend for")
	flag.StringVar(&f.date, "date", time.Now().AddDate(0, 0, 1).Format("2006-01-02"), "date to book (YYYY-MM-DD)")
	flag.Parse()

	gofakeit.Seed(time.Now().UnixNano())
	client := &http.Client{Timeout: 10 * time.Second}

	staff, err := fetchStaff(client, f.apiBase, f.tenant)
	if err != nil {
		log.Fatalf("fetch staff: %v", err)
	}
	if len(staff) == 0 {
		log.Fatal("no staff found, run cmd/seed first")
	}

	var totals counters
	for round := 0; round < f.rounds; round++ {
		member := staff[round%len(staff)]
		if len(member.Services) == 0 {
			continue
		}
		serviceID := member.Services[round%len(member.Services)].ServiceID

		slots, err := fetchSlots(client, f.apiBase, f.tenant, member.ID, serviceID, f.date)
		if err != nil {
			log.Printf("round %d: fetch slots: %v", round, err)
			continue
		}
		if len(slots) == 0 {
			log.Printf("round %d: no free slots for staff=%s service=%s date=%s",
				round, member.ID, serviceID, f.date)
			continue
		}

		slot := slots[round%len(slots)]
		log.Printf("round %d: %d workers racing for staff=%s slot=%s",
			round, f.workers, member.Name, slot.Datetime)
		raceForSlot(client, f, member.ID, serviceID, slot, &totals)
	}

	log.Printf("results: created=%d conflict=%d other=%d",
		totals.created.Load(), totals.conflict.Load(), totals.other.Load())

	if err := verifyNoOverlaps(); err != nil {
		log.Fatalf("overlap verification: %v", err)
	}
}

func raceForSlot(client *http.Client, f simFlags, staffID, serviceID string, slot slotEntry, totals *counters) {
	start, err := time.Parse(time.RFC3339, slot.Datetime)
	if err != nil {
		log.Printf("bad slot datetime %q: %v", slot.Datetime, err)
		return
	}
	end := start.Add(time.Duration(slot.Duration) * time.Minute)

	var wg sync.WaitGroup
	for w := 0; w < f.workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()

			body, _ := json.Marshal(map[string]any{
				"staff_id":   staffID,
				"service_id": serviceID,
				"start_time": start.Format(time.RFC3339),
				"end_time":   end.Format(time.RFC3339),
				"customer": map[string]string{
					"name":  gofakeit.Name(),
					"email": gofakeit.Email(),
					"phone": gofakeit.Phone(),
				},
			})

			url := fmt.Sprintf("%s/tenants/%s/appointments", f.apiBase, f.tenant)
			resp, err := client.Post(url, "application/json", bytes.NewReader(body))
			if err != nil {
				log.Printf("worker %d: post: %v", worker, err)
				totals.other.Add(1)
				return
			}
			defer resp.Body.Close()
			_, _ = io.Copy(io.Discard, resp.Body)

			switch resp.StatusCode {
			case http.StatusCreated:
				totals.created.Add(1)
			case http.StatusConflict:
				totals.conflict.Add(1)
			default:
				log.Printf("worker %d: unexpected status %d", worker, resp.StatusCode)
				totals.other.Add(1)
			}
		}(w)
	}
	wg.Wait()
}

func fetchStaff(client *http.Client, apiBase, tenant string) ([]staffEntry, error) {
	var out struct {
		Staff []staffEntry `json:"staff"`
	}
	if err := getJSON(client, fmt.Sprintf("%s/tenants/%s/staff", apiBase, tenant), &out); err != nil {
		return nil, err
	}
	return out.Staff, nil
}

func fetchSlots(client *http.Client, apiBase, tenant, staffID, serviceID, date string) ([]slotEntry, error) {
	var out struct {
		Slots []slotEntry `json:"slots"`
	}
	url := fmt.Sprintf("%s/tenants/%s/availability?staff_id=%s&service_id=%s&date=%s",
		apiBase, tenant, staffID, serviceID, date)
	if err := getJSON(client, url, &out); err != nil {
		return nil, err
	}
	return out.Slots, nil
}

func getJSON(client *http.Client, url string, out any) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// verifyNoOverlaps self-joins confirmed appointments and fails loudly if any
// pair for the same staff member intersects.
func verifyNoOverlaps() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	var overlapping int
	err = pool.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments a
		JOIN appointments b
		  ON a.staff_id = b.staff_id
		 AND a.id < b.id
		 AND a.status = 'confirmed'
		 AND b.status = 'confirmed'
		 AND a.start_time < b.end_time
		 AND b.start_time < a.end_time
	`).Scan(&overlapping)
	if err != nil {
		return err
	}

	if overlapping > 0 {
		return fmt.Errorf("found %d overlapping confirmed appointment pairs", overlapping)
	}
	log.Println("verified: no overlapping confirmed appointments")
	return nil
}
