package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Keoroanthony/nuomi-store/internal/models"
)

const (
	topProductsLimit  = 5
	recentOrdersLimit = 5
	// NoBestSeller names the best seller when nothing has been fulfilled.
	NoBestSeller = "لا يوجد"
)

type DailySales struct {
	Date  string  `json:"date"`
	Sales float64 `json:"sales"`
}

type ProductSales struct {
	Name  string `json:"name"`
	Sales int    `json:"sales"`
}

type CitySummary struct {
	City      string `json:"city"`
	Customers int    `json:"customers"`
}

type Summary struct {
	TotalRevenue       float64        `json:"totalRevenue"`
	TotalCustomers     int            `json:"totalCustomers"`
	NewCustomers       int            `json:"newCustomers"`
	TotalOrders        int            `json:"totalOrders"`
	NewOrders          int            `json:"newOrders"`
	BestSellingProduct ProductSales   `json:"bestSellingProduct"`
	SalesOverTime      []DailySales   `json:"salesOverTime"`
	TopProducts        []ProductSales `json:"topProducts"`
	Cities             []CitySummary  `json:"cities"`
	RecentOrders       []models.Order `json:"recentOrders"`
	CurrencySymbol     string         `json:"currencySymbol"`
}

// Summarize computes dashboard figures. Revenue, daily sales and product
// rankings only count fulfilled orders. orders is expected newest first.
func Summarize(orders []models.Order, users []models.User, now time.Time) Summary {
	now = now.UTC()
	monthAgo := now.AddDate(0, 0, -30)
	weekAgo := now.AddDate(0, 0, -7)

	s := Summary{
		TotalCustomers: len(users),
		TotalOrders:    len(orders),
		SalesOverTime:  make([]DailySales, 7),
		TopProducts:    []ProductSales{},
		Cities:         []CitySummary{},
	}

	days := make(map[string]int, 7)
	for i := 0; i < 7; i++ {
		date := now.AddDate(0, 0, i-6).Format(time.DateOnly)
		s.SalesOverTime[i] = DailySales{Date: date}
		days[date] = i
	}

	revenue := decimal.Zero
	daily := make([]decimal.Decimal, 7)
	sold := map[string]*ProductSales{}
	var soldOrder []string

	for _, o := range orders {
		if o.CreatedAt.After(monthAgo) {
			s.NewOrders++
		}
		if o.Status != models.StatusFulfilled {
			continue
		}

		total := decimal.NewFromFloat(o.Total)
		revenue = revenue.Add(total)
		if o.CreatedAt.After(weekAgo) {
			if i, ok := days[o.CreatedAt.UTC().Format(time.DateOnly)]; ok {
				daily[i] = daily[i].Add(total)
			}
		}

		for _, item := range o.Items {
			p, ok := sold[item.ID]
			if !ok {
				p = &ProductSales{Name: item.Name}
				sold[item.ID] = p
				soldOrder = append(soldOrder, item.ID)
			}
			p.Sales += item.Quantity
		}
	}

	s.TotalRevenue = revenue.InexactFloat64()
	for i := range daily {
		s.SalesOverTime[i].Sales = daily[i].InexactFloat64()
	}

	for _, id := range soldOrder {
		s.TopProducts = append(s.TopProducts, *sold[id])
	}
	sort.SliceStable(s.TopProducts, func(i, j int) bool {
		return s.TopProducts[i].Sales > s.TopProducts[j].Sales
	})
	if len(s.TopProducts) > topProductsLimit {
		s.TopProducts = s.TopProducts[:topProductsLimit]
	}
	s.BestSellingProduct = ProductSales{Name: NoBestSeller}
	if len(s.TopProducts) > 0 {
		s.BestSellingProduct = s.TopProducts[0]
	}

	cities := map[string]int{}
	for _, u := range users {
		if u.CreatedAt.After(monthAgo) {
			s.NewCustomers++
		}
		if u.City == "" {
			continue
		}
		if _, ok := cities[u.City]; !ok {
			cities[u.City] = len(s.Cities)
			s.Cities = append(s.Cities, CitySummary{City: u.City})
		}
		s.Cities[cities[u.City]].Customers++
	}

	s.RecentOrders = orders
	if len(orders) > recentOrdersLimit {
		s.RecentOrders = orders[:recentOrdersLimit]
	}
	return s
}

type OrderLister interface {
	ListAll(ctx context.Context) ([]models.Order, error)
}

type UserLister interface {
	List(ctx context.Context) ([]models.User, error)
}

type Service struct {
	orders   OrderLister
	users    UserLister
	currency func(ctx context.Context) (string, error)
	now      func() time.Time
}

func NewService(orders OrderLister, users UserLister, currency func(ctx context.Context) (string, error)) *Service {
	return &Service{orders: orders, users: users, currency: currency, now: time.Now}
}

func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	orders, err := s.orders.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load orders: %w", err)
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}

	summary := Summarize(orders, users, s.now())
	if s.currency != nil {
		if summary.CurrencySymbol, err = s.currency(ctx); err != nil {
			return nil, fmt.Errorf("failed to load currency: %w", err)
		}
	}
	return &summary, nil
}
