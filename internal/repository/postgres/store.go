// Package postgres implements the auction repository on PostgreSQL.
//
// Bid admission and status transitions are single UPDATE ... WHERE statements,
// so the row predicate is checked and applied atomically by the database and
// holds across any number of service instances sharing the store.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"auction-house/internal/biddingerrors"
	model "auction-house/internal/models"
	"auction-house/internal/repository"
	"auction-house/internal/repository/postgres/migrations"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

const auctionColumns = `id, product_id, seller_id, start_time, end_time, status,
	current_bid, current_bidder_id, winner_id, created_at, updated_at`

// uniqueViolation is the PostgreSQL SQLSTATE for unique constraint failures
const uniqueViolation = "23505"

var (
	_ repository.AuctionDB     = (*Store)(nil)
	_ repository.Catalog       = (*Store)(nil)
	_ repository.UserDirectory = (*Store)(nil)
)

// Store is a PostgreSQL implementation of repository.AuctionDB, Catalog and UserDirectory
type Store struct {
	db *sqlx.DB
}

// NewStore wraps an open connection pool
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Open connects to PostgreSQL using dsn
func Open(ctx context.Context, dsn string, maxOpenConns int) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxOpenConns)
	}
	return NewStore(db), nil
}

// Close releases the connection pool
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate applies all pending schema migrations
func (s *Store) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, s.db.DB, "."); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// CreateUser inserts a user. An existing user with the same id is left untouched.
func (s *Store) CreateUser(ctx context.Context, u model.User) error {
	query := `INSERT INTO users (id, name, email) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`
	if _, err := s.db.ExecContext(ctx, query, u.UserID, u.Name, u.Email); err != nil {
		return fmt.Errorf("create user %s: %w", u.UserID, err)
	}
	return nil
}

// GetUser returns a user by id
func (s *Store) GetUser(ctx context.Context, userID string) (model.User, error) {
	var u model.User
	err := s.db.GetContext(ctx, &u, `SELECT id, name, email FROM users WHERE id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, fmt.Errorf("get user %s: %w", userID, biddingerrors.ErrUserNotFound)
	}
	if err != nil {
		return model.User{}, fmt.Errorf("get user %s: %w", userID, err)
	}
	return u, nil
}

// CreateProduct inserts a catalog product. An existing product with the same id is left untouched.
func (s *Store) CreateProduct(ctx context.Context, p model.Product) error {
	query := `
        INSERT INTO products (id, title, description, starting_price, owner_id, has_auction)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (id) DO NOTHING`
	_, err := s.db.ExecContext(ctx, query, p.ProductID, p.Title, p.Description, p.StartingPrice, p.OwnerID, p.HasAuction)
	if err != nil {
		return fmt.Errorf("create product %s: %w", p.ProductID, err)
	}
	return nil
}

// GetProduct returns a catalog product by id
func (s *Store) GetProduct(ctx context.Context, productID string) (model.Product, error) {
	var p model.Product
	query := `SELECT id, title, description, starting_price, owner_id, has_auction FROM products WHERE id = $1`
	err := s.db.GetContext(ctx, &p, query, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Product{}, fmt.Errorf("get product %s: %w", productID, biddingerrors.ErrProductNotFound)
	}
	if err != nil {
		return model.Product{}, fmt.Errorf("get product %s: %w", productID, err)
	}
	return p, nil
}

// CreateAuction claims the product and inserts the auction in one transaction
func (s *Store) CreateAuction(ctx context.Context, a model.Auction) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("create auction: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`UPDATE products SET has_auction = TRUE WHERE id = $1 AND has_auction = FALSE`, a.ProductID)
	if err != nil {
		return fmt.Errorf("create auction: claim product %s: %w", a.ProductID, err)
	}
	claimed, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create auction: claim product %s: %w", a.ProductID, err)
	}
	if claimed == 0 {
		var exists bool
		if err = tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, a.ProductID); err != nil {
			return fmt.Errorf("create auction: check product %s: %w", a.ProductID, err)
		}
		if !exists {
			return fmt.Errorf("create auction for product %s: %w", a.ProductID, biddingerrors.ErrProductNotFound)
		}
		return fmt.Errorf("create auction for product %s: %w", a.ProductID, biddingerrors.ErrProductHasAuction)
	}

	query := `
        INSERT INTO auctions (` + auctionColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err = tx.ExecContext(ctx, query,
		a.AuctionID, a.ProductID, a.SellerID, a.StartTime, a.EndTime, a.Status,
		a.CurrentBid, a.CurrentBidder, a.Winner, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation && pqErr.Constraint == "auctions_product_id_key" {
			return fmt.Errorf("create auction for product %s: %w", a.ProductID, biddingerrors.ErrProductHasAuction)
		}
		return fmt.Errorf("create auction %s: %w", a.AuctionID, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("create auction %s: commit: %w", a.AuctionID, err)
	}
	return nil
}

// GetAuction returns a single auction by id
func (s *Store) GetAuction(ctx context.Context, auctionID string) (model.Auction, error) {
	return getAuction(ctx, s.db, auctionID)
}

func getAuction(ctx context.Context, q sqlx.QueryerContext, auctionID string) (model.Auction, error) {
	var a model.Auction
	err := sqlx.GetContext(ctx, q, &a, `SELECT `+auctionColumns+` FROM auctions WHERE id = $1`, auctionID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	if err != nil {
		return model.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, err)
	}
	return a, nil
}

// ListAuctions returns auctions matching filter, newest first
func (s *Store) ListAuctions(ctx context.Context, filter model.AuctionFilter) ([]model.Auction, error) {
	var conditions []string
	var args []any
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.SellerID != "" {
		args = append(args, filter.SellerID)
		conditions = append(conditions, fmt.Sprintf("seller_id = $%d", len(args)))
	}

	query := `SELECT ` + auctionColumns + ` FROM auctions`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id ASC"

	auctions := []model.Auction{}
	if err := s.db.SelectContext(ctx, &auctions, query, args...); err != nil {
		return nil, fmt.Errorf("list auctions: %w", err)
	}
	return auctions, nil
}

// ListDueAuctions returns auctions in status whose next transition is due at before
func (s *Store) ListDueAuctions(ctx context.Context, status model.AuctionStatus, before time.Time, limit int) ([]model.Auction, error) {
	var column string
	switch status {
	case model.StatusPending:
		column = "start_time"
	case model.StatusActive:
		column = "end_time"
	default:
		return nil, fmt.Errorf("list due auctions: no transition out of status %q", status)
	}

	// LIMIT NULL means no limit
	var maxRows sql.NullInt64
	if limit > 0 {
		maxRows = sql.NullInt64{Int64: int64(limit), Valid: true}
	}

	query := `SELECT ` + auctionColumns + ` FROM auctions
        WHERE status = $1 AND ` + column + ` <= $2
        ORDER BY ` + column + ` ASC
        LIMIT $3`
	auctions := []model.Auction{}
	if err := s.db.SelectContext(ctx, &auctions, query, status, before, maxRows); err != nil {
		return nil, fmt.Errorf("list due %s auctions: %w", status, err)
	}
	return auctions, nil
}

// TransitionAuction moves an auction from -> to if it is still in from
func (s *Store) TransitionAuction(ctx context.Context, auctionID string, from, to model.AuctionStatus, at time.Time) (model.Auction, bool, error) {
	query := `
        UPDATE auctions
        SET status = $3::text,
            winner_id = CASE WHEN $3::text = 'ended' THEN current_bidder_id ELSE winner_id END,
            updated_at = $4
        WHERE id = $1 AND status = $2
        RETURNING ` + auctionColumns
	var a model.Auction
	err := s.db.GetContext(ctx, &a, query, auctionID, from, to, at)
	if errors.Is(err, sql.ErrNoRows) {
		current, getErr := s.GetAuction(ctx, auctionID)
		if getErr != nil {
			return model.Auction{}, false, fmt.Errorf("transition auction %s: %w", auctionID, getErr)
		}
		return current, false, nil
	}
	if err != nil {
		return model.Auction{}, false, fmt.Errorf("transition auction %s %s->%s: %w", auctionID, from, to, err)
	}
	return a, true, nil
}

// ApplyBid raises the auction's current bid and records bid in one transaction,
// provided the auction still accepts it.
func (s *Store) ApplyBid(ctx context.Context, bid model.Bid) (_ model.Auction, _ bool, err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.Auction{}, false, fmt.Errorf("apply bid: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := `
        UPDATE auctions
        SET current_bid = $2, current_bidder_id = $3, updated_at = $4
        WHERE id = $1 AND status = 'active' AND end_time > $4 AND current_bid < $2
        RETURNING ` + auctionColumns
	var a model.Auction
	err = tx.GetContext(ctx, &a, query, bid.AuctionID, bid.Amount, bid.BidderID, bid.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		_ = tx.Rollback()
		current, getErr := s.GetAuction(ctx, bid.AuctionID)
		if getErr != nil {
			return model.Auction{}, false, fmt.Errorf("apply bid: %w", getErr)
		}
		return current, false, nil
	}
	if err != nil {
		return model.Auction{}, false, fmt.Errorf("apply bid to auction %s: %w", bid.AuctionID, err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO bids (id, auction_id, bidder_id, amount, created_at) VALUES ($1, $2, $3, $4, $5)`,
		bid.BidID, bid.AuctionID, bid.BidderID, bid.Amount, bid.CreatedAt)
	if err != nil {
		return model.Auction{}, false, fmt.Errorf("record bid %s: %w", bid.BidID, err)
	}

	if err = tx.Commit(); err != nil {
		return model.Auction{}, false, fmt.Errorf("apply bid %s: commit: %w", bid.BidID, err)
	}
	return a, true, nil
}

// GetBidsByAuction returns the bid ledger of an auction, newest first
func (s *Store) GetBidsByAuction(ctx context.Context, auctionID string) ([]model.Bid, error) {
	if _, err := s.GetAuction(ctx, auctionID); err != nil {
		return nil, fmt.Errorf("get bids: %w", err)
	}

	bids := []model.Bid{}
	query := `
        SELECT id, auction_id, bidder_id, amount, created_at
        FROM bids
        WHERE auction_id = $1
        ORDER BY created_at DESC, amount DESC`
	if err := s.db.SelectContext(ctx, &bids, query, auctionID); err != nil {
		return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, err)
	}
	return bids, nil
}
