package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"auction_go/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	defaultOpTimeout = 3 * time.Second
	sqliteBusyMillis = 5000

	slowQueryThreshold = 200 * time.Millisecond
)

// Options configures the SQL store.
type Options struct {
	Driver       string        // "sqlite" (default) or "postgres"
	DSN          string        // file path for sqlite, connection string for postgres
	OpTimeout    time.Duration // bound on every store call
	MaxOpenConns int           // postgres only; sqlite always uses a single connection
}

// Storage is the durable auction store backed by gorm.
// All cross-request consistency comes from conditional UPDATEs inside transactions.
type Storage struct {
	db        *gorm.DB
	opTimeout time.Duration
}

var _ domain.AuctionStore = (*Storage)(nil)

// NewStorage opens the database and migrates the auction schema.
func NewStorage(opts Options) (*Storage, error) {
	dialector, err := openDialector(opts)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         newGormLogger(),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	if opts.Driver == DriverPostgres {
		if opts.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
		}
	} else {
		// SQLite allows one writer; a single connection turns lock contention into queueing.
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(&domain.Counter{}, &domain.AuctionRecord{}, &domain.BidRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	timeout := opts.OpTimeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	return &Storage{db: db, opTimeout: timeout}, nil
}

// newGormLogger sends gorm warnings and slow queries through slog. A missing row is the
// normal answer to "is anything active", so it is not logged.
func newGormLogger() logger.Interface {
	return logger.New(
		slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn),
		logger.Config{
			SlowThreshold:             slowQueryThreshold,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

func openDialector(opts Options) (gorm.Dialector, error) {
	switch opts.Driver {
	case DriverPostgres:
		if opts.DSN == "" {
			return nil, fmt.Errorf("postgres driver requires a DSN")
		}
		return postgres.Open(opts.DSN), nil
	case "", DriverSQLite:
		dbPath := opts.DSN
		if dbPath == "" {
			p, err := getDBPath()
			if err != nil {
				return nil, fmt.Errorf("failed to resolve DB path: %w", err)
			}
			dbPath = p
		}
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create DB directory: %w", err)
		}
		dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)", dbPath, sqliteBusyMillis)
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", opts.Driver)
	}
}

// getDBPath resolves the database file path based on OS
func getDBPath() (string, error) {
	var configDir string
	var err error

	if runtime.GOOS == "windows" {
		configDir = os.Getenv("LOCALAPPDATA")
		if configDir == "" {
			configDir, err = os.UserConfigDir()
		}
	} else {
		configDir, err = os.UserConfigDir()
	}

	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, "AuctionGo", "data", "auction.db"), nil
}

// Close releases the underlying connection pool.
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Storage) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

// wrap passes domain errors through and turns everything else into a StorageError.
func wrap(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrNoActiveAuction),
		errors.Is(err, domain.ErrAuctionAlreadyActive),
		errors.Is(err, domain.ErrDuplicateAuctionID):
		return err
	default:
		return domain.NewStorageError(op, err)
	}
}

// ======================================================================================
// Counters
// ======================================================================================

// NextSequence increments the named counter and returns the new value, starting from 1.
func (s *Storage) NextSequence(ctx context.Context, name string) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var counter domain.Counter
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&domain.Counter{Name: name, UpdatedAt: time.Now()}).Error; err != nil {
			return err
		}

		res := tx.Model(&domain.Counter{}).
			Where("name = ?", name).
			UpdateColumns(map[string]interface{}{
				"value":      gorm.Expr("value + 1"),
				"updated_at": time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return fmt.Errorf("counter %q: expected 1 row updated, got %d", name, res.RowsAffected)
		}

		return tx.First(&counter, "name = ?", name).Error
	})
	if err != nil {
		return 0, wrap("next_sequence", err)
	}
	return counter.Value, nil
}

// ======================================================================================
// Auction Operations
// ======================================================================================

// createAuctionRecord inserts rec. The id was checked first, so a duplicate key can only
// be the one-active index: another start won the race.
func createAuctionRecord(tx *gorm.DB, rec *domain.AuctionRecord) error {
	if err := tx.Create(rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrAuctionAlreadyActive
		}
		return err
	}
	return nil
}

// InsertAuction writes a new auction record together with any bids it already carries.
func (s *Storage) InsertAuction(ctx context.Context, a domain.Auction) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rec := domain.NewAuctionRecord(a)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sameID int64
		if err := tx.Model(&domain.AuctionRecord{}).Where("auction_id = ?", rec.AuctionID).Count(&sameID).Error; err != nil {
			return err
		}
		if sameID > 0 {
			return fmt.Errorf("auction %d: %w", rec.AuctionID, domain.ErrDuplicateAuctionID)
		}

		if rec.IsActive {
			var active int64
			if err := tx.Model(&domain.AuctionRecord{}).Where("is_active = ?", true).Count(&active).Error; err != nil {
				return err
			}
			if active > 0 {
				return domain.ErrAuctionAlreadyActive
			}
		}

		if err := createAuctionRecord(tx, &rec); err != nil {
			return err
		}

		if len(a.BidHistory) == 0 {
			return nil
		}
		bids := make([]domain.BidRecord, 0, len(a.BidHistory))
		for _, b := range a.BidHistory {
			bids = append(bids, domain.BidRecord{
				AuctionID:      rec.AuctionID,
				SequenceNumber: b.SequenceNumber,
				Bid:            b.Bid,
				SenderID:       b.SenderID,
				ClientSequence: b.ClientSequence,
			})
		}
		return tx.Create(&bids).Error
	})
	return wrap("insert_auction", err)
}

// AppendBid applies one bid to the active auction in a single conditional update.
func (s *Storage) AppendBid(ctx context.Context, amount, senderID int64, clientSeq *int64) (domain.Auction, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var out domain.Auction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		res := tx.Model(&domain.AuctionRecord{}).
			Where("is_active = ?", true).
			UpdateColumns(map[string]interface{}{
				"sequence_number": gorm.Expr("sequence_number + 1"),
				"highest_bid":     gorm.Expr("CASE WHEN highest_bid < ? THEN ? ELSE highest_bid END", amount, amount),
				"winner_id":       senderID,
				"updated_at":      now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNoActiveAuction
		}

		var rec domain.AuctionRecord
		if err := tx.Where("is_active = ?", true).First(&rec).Error; err != nil {
			return err
		}

		bid := domain.BidRecord{
			AuctionID:      rec.AuctionID,
			SequenceNumber: rec.SequenceNumber,
			Bid:            amount,
			SenderID:       senderID,
			ClientSequence: clientSeq,
			CreatedAt:      now,
		}
		if err := tx.Create(&bid).Error; err != nil {
			return err
		}

		bids, err := loadBids(tx, rec.AuctionID)
		if err != nil {
			return err
		}
		out = rec.ToAuction(bids)
		return nil
	})
	if err != nil {
		return domain.Auction{}, wrap("append_bid", err)
	}
	return out, nil
}

// CloseActive ends the active auction with the caller's final tally.
func (s *Storage) CloseActive(ctx context.Context, winnerID, highestBid int64) (domain.Auction, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var out domain.Auction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec domain.AuctionRecord
		if err := tx.Where("is_active = ?", true).First(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNoActiveAuction
			}
			return err
		}

		now := time.Now()
		res := tx.Model(&domain.AuctionRecord{}).
			Where("auction_id = ? AND is_active = ?", rec.AuctionID, true).
			UpdateColumns(map[string]interface{}{
				"is_active":   false,
				"winner_id":   winnerID,
				"highest_bid": highestBid,
				"ended_at":    now,
				"updated_at":  now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNoActiveAuction
		}

		rec.IsActive = false
		rec.WinnerID = winnerID
		rec.HighestBid = highestBid
		rec.EndedAt = &now

		bids, err := loadBids(tx, rec.AuctionID)
		if err != nil {
			return err
		}
		out = rec.ToAuction(bids)
		return nil
	})
	if err != nil {
		return domain.Auction{}, wrap("close_active", err)
	}
	return out, nil
}

// ActiveAuction returns the active auction or nil.
func (s *Storage) ActiveAuction(ctx context.Context) (*domain.Auction, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var rec domain.AuctionRecord
	err := s.db.WithContext(ctx).Where("is_active = ?", true).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil // Nothing active is not an error
	}
	if err != nil {
		return nil, wrap("active_auction", err)
	}

	bids, err := loadBids(s.db.WithContext(ctx), rec.AuctionID)
	if err != nil {
		return nil, wrap("active_auction", err)
	}
	a := rec.ToAuction(bids)
	return &a, nil
}

// ListAuctions returns every auction ordered by id, each with its bid history.
func (s *Storage) ListAuctions(ctx context.Context) ([]domain.Auction, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	db := s.db.WithContext(ctx)
	var recs []domain.AuctionRecord
	if err := db.Order("auction_id").Find(&recs).Error; err != nil {
		return nil, wrap("list_auctions", err)
	}

	var bids []domain.BidRecord
	if err := db.Order("auction_id, sequence_number").Find(&bids).Error; err != nil {
		return nil, wrap("list_auctions", err)
	}
	byAuction := make(map[int64][]domain.BidRecord, len(recs))
	for _, b := range bids {
		byAuction[b.AuctionID] = append(byAuction[b.AuctionID], b)
	}

	out := make([]domain.Auction, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.ToAuction(byAuction[r.AuctionID]))
	}
	return out, nil
}

// Aggregate computes count/sum/max/min of winning bids and the bid total over ended auctions.
func (s *Storage) Aggregate(ctx context.Context) (domain.AuctionAggregate, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var agg domain.AuctionAggregate
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row struct {
			Concluded int64
			Total     int64
			Highest   int64
			Lowest    int64
		}
		if err := tx.Model(&domain.AuctionRecord{}).
			Select("COUNT(*) AS concluded, COALESCE(SUM(highest_bid), 0) AS total, " +
				"COALESCE(MAX(highest_bid), 0) AS highest, COALESCE(MIN(highest_bid), 0) AS lowest").
			Where("is_active = ?", false).
			Scan(&row).Error; err != nil {
			return err
		}
		agg.ConcludedCount = row.Concluded
		agg.SumHighestBid = row.Total
		agg.MaxHighestBid = row.Highest
		agg.MinHighestBid = row.Lowest

		if err := tx.Model(&domain.BidRecord{}).
			Joins("JOIN auctions ON auctions.auction_id = bids.auction_id").
			Where("auctions.is_active = ?", false).
			Count(&agg.TotalBids).Error; err != nil {
			return err
		}

		return tx.Model(&domain.AuctionRecord{}).Where("is_active = ?", true).Count(&agg.ActiveCount).Error
	})
	if err != nil {
		return domain.AuctionAggregate{}, wrap("aggregate", err)
	}
	return agg, nil
}

func loadBids(tx *gorm.DB, auctionID int64) ([]domain.BidRecord, error) {
	var bids []domain.BidRecord
	err := tx.Where("auction_id = ?", auctionID).Order("sequence_number").Find(&bids).Error
	return bids, err
}
