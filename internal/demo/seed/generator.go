package seed

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"
)

type Customer struct {
	CustomerID int64     `parquet:"customer_id"`
	Name       string    `parquet:"name"`
	Email      string    `parquet:"email"`
	Country    string    `parquet:"country"`
	Segment    string    `parquet:"segment"`
	SignupAt   time.Time `parquet:"signup_at"`
}

type Order struct {
	OrderID    int64     `parquet:"order_id"`
	CustomerID int64     `parquet:"customer_id"`
	OrderedAt  time.Time `parquet:"ordered_at"`
	Status     string    `parquet:"status"`
	Amount     float64   `parquet:"amount"`
	Currency   string    `parquet:"currency"`
	Channel    string    `parquet:"channel"`
}

var (
	firstNames = []string{"Ada", "Grace", "Alan", "Edsger", "Barbara", "Donald", "Margaret", "Ken", "Frances", "Dennis"}
	lastNames  = []string{"Lovelace", "Hopper", "Turing", "Dijkstra", "Liskov", "Knuth", "Hamilton", "Thompson", "Allen", "Ritchie"}
	countries  = []string{"US", "DE", "GB", "IN", "JP", "BR"}
	segments   = []string{"consumer", "small_business", "enterprise"}
	channels   = []string{"web", "mobile", "partner"}
)

// Generator produces the same customers and orders for the same seed.
type Generator struct {
	rnd   *rand.Rand
	epoch time.Time
}

func NewGenerator(seed int64) *Generator {
	return &Generator{
		rnd:   rand.New(rand.NewSource(seed)),
		epoch: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (g *Generator) Customers(count int) []Customer {
	customers := make([]Customer, 0, count)
	for i := 1; i <= count; i++ {
		first := pickOne(g.rnd, firstNames)
		last := pickOne(g.rnd, lastNames)
		customers = append(customers, Customer{
			CustomerID: int64(i),
			Name:       first + " " + last,
			Email:      fmt.Sprintf("%s.%s.%d@example.com", strings.ToLower(first), strings.ToLower(last), i),
			Country:    pickOne(g.rnd, countries),
			Segment:    pickOne(g.rnd, segments),
			SignupAt:   g.epoch.Add(time.Duration(g.rnd.Intn(365*24)) * time.Hour),
		})
	}
	return customers
}

// Orders references customer IDs 1..customers and spans two calendar years.
func (g *Generator) Orders(count, customers int) []Order {
	if customers <= 0 {
		return nil
	}
	orders := make([]Order, 0, count)
	for i := 1; i <= count; i++ {
		status := g.pickStatus()
		amount := round2(10 + g.rnd.Float64()*490)
		if status == "refunded" {
			amount = -amount
		}
		orders = append(orders, Order{
			OrderID:    int64(i),
			CustomerID: int64(g.rnd.Intn(customers) + 1),
			OrderedAt:  g.epoch.Add(time.Duration(g.rnd.Intn(2*365*24)) * time.Hour),
			Status:     status,
			Amount:     amount,
			Currency:   "USD",
			Channel:    pickOne(g.rnd, channels),
		})
	}
	return orders
}

func (g *Generator) pickStatus() string {
	p := g.rnd.Intn(100)
	switch {
	case p < 80:
		return "completed"
	case p < 92:
		return "shipped"
	case p < 97:
		return "cancelled"
	default:
		return "refunded"
	}
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

func pickOne(r *rand.Rand, values []string) string {
	return values[r.Intn(len(values))]
}
