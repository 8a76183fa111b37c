package storage

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"raffle/internal/logger"
	"raffle/internal/raffle"
)

const (
	DriverSqlite   = "sqlite"
	DriverPostgres = "postgres"
)

type GormStorage struct {
	db *gorm.DB
}

var _ Storage = (*GormStorage)(nil)

func Open(driver, dsn string) (*GormStorage, error) {

	var dialector gorm.Dialector
	switch driver {
	case DriverSqlite, "":
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, errors.Errorf("unknown storage driver %q", driver)
	}

	logger.Debug("initializing database...", zap.String("driver", driver))
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Discard})
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	err = db.AutoMigrate(
		&RaffleRecord{},
		&EventRecord{},
		&PayoutRecord{},
	)

	if err != nil {
		return nil, errors.Wrap(err, "migrate database")
	}

	logger.Debug("initializing database... done")
	return &GormStorage{
		db: db,
	}, nil
}

func (s *GormStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveRaffle stores the raffle parameters once. A second call leaves the
// existing row untouched.
func (s *GormStorage) SaveRaffle(ctx context.Context, record *RaffleRecord) error {
	logger.Debug("saving raffle...")

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(record).Error

	if err != nil {
		return err
	}

	logger.Debug("saving raffle... done")
	return nil
}

func (s *GormStorage) GetRaffle(ctx context.Context) (*RaffleRecord, error) {

	var record RaffleRecord
	err := s.db.WithContext(ctx).First(&record, 1).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &record, nil
}

// AppendEvent writes the event and its payout in one transaction.
func (s *GormStorage) AppendEvent(ctx context.Context, event raffle.Event) error {
	logger.Debug("appending event...", zap.Uint64("seq", event.Seq), zap.String("kind", string(event.Kind)))

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(newEventRecord(uuid.NewString(), event)).Error; err != nil {
			return errors.Wrapf(err, "insert event %d", event.Seq)
		}
		if event.Payout == nil {
			return nil
		}
		if err := tx.Create(newPayoutRecord(uuid.NewString(), event)).Error; err != nil {
			return errors.Wrapf(err, "insert payout for event %d", event.Seq)
		}
		return nil
	})

	if err != nil {
		return err
	}

	logger.Debug("appending event... done")
	return nil
}

// Record makes the storage usable as the raffle's journal.
func (s *GormStorage) Record(ctx context.Context, event raffle.Event) error {
	return s.AppendEvent(ctx, event)
}

func (s *GormStorage) GetEvents(ctx context.Context) ([]raffle.Event, error) {
	return s.GetEventsAfter(ctx, 0, 0)
}

// GetEventsAfter returns events with seq greater than the given one in seq
// order. A limit of zero means no limit.
func (s *GormStorage) GetEventsAfter(ctx context.Context, seq uint64, limit int) ([]raffle.Event, error) {
	logger.Debug("getting events...", zap.Uint64("after", seq), zap.Int("limit", limit))

	query := s.db.WithContext(ctx).Where("seq > ?", seq).Order("seq asc")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var records []*EventRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	var payouts []*PayoutRecord
	err := s.db.WithContext(ctx).
		Where("event_seq >= ? and event_seq <= ?", records[0].Seq, records[len(records)-1].Seq).
		Find(&payouts).Error
	if err != nil {
		return nil, err
	}
	bySeq := make(map[uint64]*PayoutRecord, len(payouts))
	for _, payout := range payouts {
		bySeq[payout.EventSeq] = payout
	}

	events := make([]raffle.Event, 0, len(records))
	for _, record := range records {
		event, err := record.Event(bySeq[record.Seq])
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	logger.Debug("getting events... done", zap.Int("count", len(events)))
	return events, nil
}

func (s *GormStorage) GetPayouts(ctx context.Context) ([]*PayoutRecord, error) {

	var payouts []*PayoutRecord
	err := s.db.WithContext(ctx).Order("event_seq asc").Find(&payouts).Error

	if err != nil {
		return nil, err
	}

	return payouts, nil
}

func (s *GormStorage) GetPayoutsByRecipient(ctx context.Context, recipient raffle.Account) ([]*PayoutRecord, error) {

	var payouts []*PayoutRecord
	err := s.db.WithContext(ctx).
		Where("recipient = ?", recipient.String()).
		Order("event_seq asc").
		Find(&payouts).Error

	if err != nil {
		return nil, err
	}

	return payouts, nil
}

// GetBalance sums every payout made to recipient.
func (s *GormStorage) GetBalance(ctx context.Context, recipient raffle.Account) (decimal.Decimal, error) {

	payouts, err := s.GetPayoutsByRecipient(ctx, recipient)
	if err != nil {
		return decimal.Zero, err
	}

	balance := decimal.Zero
	for _, payout := range payouts {
		amount, err := strconv.ParseUint(payout.Amount, 10, 64)
		if err != nil {
			return decimal.Zero, errors.Wrapf(err, "payout for event %d", payout.EventSeq)
		}
		balance = balance.Add(decimal.NewFromUint64(amount))
	}

	return balance, nil
}
