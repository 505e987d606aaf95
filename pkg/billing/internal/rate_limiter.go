package internal

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// DeliveryLimiter caps webhook deliveries per client address in fixed windows.
// A refused delivery is answered 429 with Retry-After; Stripe redelivers it later.
type DeliveryLimiter struct {
	limit     int
	window    time.Duration
	onLimited func(client string)
	now       func() time.Time

	mu        sync.Mutex
	clients   map[string]deliveryWindow
	nextSweep time.Time
}

type deliveryWindow struct {
	opened time.Time
	used   int
}

// NewDeliveryLimiter allows limit deliveries per client and window. onLimited,
// when set, is called for every refused delivery.
func NewDeliveryLimiter(limit int, window time.Duration, onLimited func(client string)) *DeliveryLimiter {
	return &DeliveryLimiter{
		limit:     limit,
		window:    window,
		onLimited: onLimited,
		now:       time.Now,
		clients:   make(map[string]deliveryWindow),
	}
}

// Take spends one delivery of client's budget. When the budget is exhausted it
// returns false and the time left until the client's window reopens.
func (l *DeliveryLimiter) Take(client string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	w, ok := l.clients[client]
	if !ok || now.Sub(w.opened) >= l.window {
		w = deliveryWindow{opened: now}
	}
	if w.used >= l.limit {
		return false, w.opened.Add(l.window).Sub(now)
	}
	w.used++
	l.clients[client] = w
	return true, 0
}

// sweep drops closed windows, at most once per window length.
func (l *DeliveryLimiter) sweep(now time.Time) {
	if now.Before(l.nextSweep) {
		return
	}
	for client, w := range l.clients {
		if now.Sub(w.opened) >= l.window {
			delete(l.clients, client)
		}
	}
	l.nextSweep = now.Add(l.window)
}

// Tracked returns the number of clients with an open window.
func (l *DeliveryLimiter) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// Wrap refuses deliveries over budget before they reach next.
func (l *DeliveryLimiter) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := ClientAddr(r)
		ok, wait := l.Take(client)
		if !ok {
			secs := int((wait + time.Second - 1) / time.Second)
			if secs < 1 {
				secs = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			if l.onLimited != nil {
				l.onLimited(client)
			}
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientAddr returns RemoteAddr without its port. Proxy headers are resolved
// before this point by the router (chi's RealIP).
func ClientAddr(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
