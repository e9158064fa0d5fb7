package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var rawOrders = []string{
	"Order 1001: Buyer=John Davis, Location=Columbus, OH, Total=$742.10, Items: laptop, hdmi cable",
	"Order 1002: Buyer=Sarah Liu, Location=Austin, TX, Total=$156.55, Items: headphones",
	"Order 1003: Buyer=Mike Turner, Location=Cleveland, OH, Total=$1299.99, Items: gaming pc, mouse",
	"Order 1004: Buyer=Rachel Kim, Location=Seattle, WA, Total=$89.50, Items: coffee maker",
	"Order 1005: Buyer=Chris Myers, Location=Cincinnati, OH, Total=$512.00, Items: monitor, desk lamp",
	"Order 1006: Buyer=Amanda Foster, Location=Chicago, IL, Total=$67.25, Items: phone case, screen protector",
	"Order 1007: Buyer=David Park, Location=Portland, OR, Total=$899.99, Items: 4k television",
	"Order 1008: Buyer=Jessica Wang, Location=Dayton, OH, Total=$234.50, Items: wireless keyboard, webcam",
	"Order 1009: Buyer=Brian Kelly, Location=Miami, FL, Total=$1750.00, Items: macbook pro, usb-c hub",
	"Order 1010: Buyer=Lisa Hernandez, Location=Denver, CO, Total=$45.99, Items: notebook, pens",
	"Order 1011: Buyer=Tom Richardson, Location=Akron, OH, Total=$623.00, Items: tablet, stylus, case",
	"Order 1012: Buyer=Emily Chen, Location=San Francisco, CA, Total=$349.99, Items: smart watch",
	"Order 1013: Buyer=James Wilson, Location=Toledo, OH, Total=$178.75, Items: bluetooth speaker, aux cable",
	"Order 1014: Buyer=Maria Santos, Location=Phoenix, AZ, Total=$2100.50, Items: desktop computer, dual monitors, keyboard",
	"Order 1015: Buyer=Kevin O'Brien, Location=Boston, MA, Total=$55.00, Items: mouse pad, cable organizer",
	"Order 1016: Buyer=Priya Patel, Location=Indianapolis, IN, Total=$445.00, Items: noise-canceling headphones, dac",
	"Order 1017: Buyer=Nathan Scott, Location=Columbus, OH, Total=$987.50, Items: drone, extra batteries",
	"Order 1018: Buyer=Hannah Lee, Location=Nashville, TN, Total=$129.99, Items: portable charger, lightning cable",
	"Order 1019: Buyer=Robert Chang, Location=Detroit, MI, Total=$1550.00, Items: gaming laptop, cooling pad",
	"Order 1020: Buyer=Sophie Martin, Location=Minneapolis, MN, Total=$72.30, Items: usb hub, ethernet adapter",
}

func main() {
	addr := flag.String("addr", ":5001", "listen address")
	flag.Parse()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/api/orders", func(w http.ResponseWriter, r *http.Request) {
		if !enforceGet(w, r) {
			return
		}
		orders := rawOrders
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n < len(orders) {
				orders = orders[:n]
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":     "ok",
			"raw_orders": orders,
		})
	})

	mux.HandleFunc("/api/order/", func(w http.ResponseWriter, r *http.Request) {
		if !enforceGet(w, r) {
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/api/order/")
		for _, line := range rawOrders {
			if id != "" && strings.Contains(line, id) {
				writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "raw_order": line})
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]any{"status": "not_found"})
	})

	logger := log.New(log.Writer(), "orders-mock ", log.LstdFlags|log.Lmicroseconds)
	srv := &http.Server{
		Addr:              *addr,
		Handler:           logRequests(logger, mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

func enforceGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode error: %v", err)
	}
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Printf("%s %s %d %s", r.Method, r.URL.Path, rw.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
