package services

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/pharmacy-marketplace/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, models.AutoMigrate(db))
	return db
}

type sentMessage struct {
	UserID uint
	Role   string
	Event  string
	Data   interface{}
}

type fakeNotifier struct {
	mu     sync.Mutex
	online map[uint]bool
	sent   []sentMessage
}

func newFakeNotifier(online ...uint) *fakeNotifier {
	f := &fakeNotifier{online: make(map[uint]bool)}
	for _, id := range online {
		f.online[id] = true
	}
	return f
}

func (f *fakeNotifier) SendToUser(userID uint, event string, data interface{}) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.online[userID] {
		return false
	}
	f.sent = append(f.sent, sentMessage{UserID: userID, Event: event, Data: data})
	return true
}

func (f *fakeNotifier) SendToRole(role, event string, data interface{}) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{Role: role, Event: event, Data: data})
	return 1
}

func (f *fakeNotifier) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

func createUser(t *testing.T, db *gorm.DB, name string, role models.Role) models.User {
	t.Helper()
	u := models.User{
		Name:     name,
		Email:    strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.dz",
		Password: "hashed",
		Role:     role,
	}
	require.NoError(t, db.Create(&u).Error)
	return u
}

type marketFixture struct {
	Owner     models.User
	Cashier   models.User
	Client    models.User
	Pharmacy  models.Pharmacy
	Medicine  models.Medicine
	StockA    models.Stock
	StockB    models.Stock
	Sale      models.Sale
	Logistics models.LogisticsCenter
}

// seedMarket creates a pharmacy with two stock rows and an online sale of
// 100 with a discount of 10.
func seedMarket(t *testing.T, db *gorm.DB) marketFixture {
	t.Helper()
	var f marketFixture
	f.Owner = createUser(t, db, "Pharmacy Owner", models.RolePharmacyOwner)
	f.Client = createUser(t, db, "Amina Client", models.RoleClient)

	f.Pharmacy = models.Pharmacy{Name: "Pharmacie Centrale", OwnerID: f.Owner.ID}
	require.NoError(t, db.Create(&f.Pharmacy).Error)

	f.Cashier = models.User{Name: "Cashier", Email: "cashier@example.dz", Password: "hashed", Role: models.RoleCashier, PharmacyID: &f.Pharmacy.ID}
	require.NoError(t, db.Create(&f.Cashier).Error)

	f.Medicine = models.Medicine{Name: "Doliprane 1000", PriceForOne: decimal.NewFromInt(25)}
	require.NoError(t, db.Create(&f.Medicine).Error)

	f.StockA = models.Stock{PharmacyID: f.Pharmacy.ID, MedicineID: f.Medicine.ID, StockQuantity: 10}
	f.StockB = models.Stock{PharmacyID: f.Pharmacy.ID, MedicineID: f.Medicine.ID, StockQuantity: 5}
	require.NoError(t, db.Create(&f.StockA).Error)
	require.NoError(t, db.Create(&f.StockB).Error)

	f.Sale = models.Sale{
		CashierID:      f.Cashier.ID,
		PharmacyID:     f.Pharmacy.ID,
		TotalAmount:    decimal.NewFromInt(100),
		DiscountAmount: decimal.NewFromInt(10),
		PaymentMethod:  models.SalePaymentOnline,
		Items: []models.SaleItem{
			{StockID: f.StockA.ID, Quantity: 2, UnitPrice: decimal.NewFromInt(25), Subtotal: decimal.NewFromInt(50)},
			{StockID: f.StockB.ID, Quantity: 2, UnitPrice: decimal.NewFromInt(25), Subtotal: decimal.NewFromInt(50)},
		},
	}
	require.NoError(t, db.Create(&f.Sale).Error)

	f.Logistics = models.LogisticsCenter{Name: "Algiers Hub"}
	require.NoError(t, db.Create(&f.Logistics).Error)
	return f
}
