package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"dgnmMarket/internal/model"
	"dgnmMarket/internal/storage"
)

//go:embed schema.sql
var schemaSQL string

const uniqueViolation = "23505"

// Store provides Postgres persistence for the ledger.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates the ledger tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Commit writes m in one transaction. Settlements are insert-only; the unique
// listing_id constraint rejects a second settlement of the same listing.
func (s *Store) Commit(ctx context.Context, m model.Mutation) error {
	if m.Empty() {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	if c := m.Collection; c != nil {
		batch.Queue(`
			INSERT INTO collection (id, owner, mint_cost, state, next_token_id, updated_at)
			VALUES (1, $1, $2, $3, $4, now())
			ON CONFLICT (id) DO UPDATE SET
				owner = EXCLUDED.owner,
				mint_cost = EXCLUDED.mint_cost,
				state = EXCLUDED.state,
				next_token_id = EXCLUDED.next_token_id,
				updated_at = now()
		`, c.Owner.Hex(), numericFromBig(c.MintCost), int16(c.State), int64(c.NextTokenID))
	}
	for _, nft := range m.NFTs {
		batch.Queue(`
			INSERT INTO nfts (token_id, owner, locked_by, updated_at)
			VALUES ($1, $2, $3, now())
			ON CONFLICT (token_id) DO UPDATE SET
				owner = EXCLUDED.owner,
				locked_by = EXCLUDED.locked_by,
				updated_at = now()
		`, int64(nft.TokenID), nft.Owner.Hex(), int64(nft.LockedBy))
	}
	for _, listing := range m.Listings {
		batch.Queue(`
			INSERT INTO listings (id, nft_id, seller, price, accepted_tokens, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, now())
			ON CONFLICT (id) DO UPDATE SET
				status = EXCLUDED.status,
				updated_at = now()
		`,
			int64(listing.ID),
			int64(listing.NFTID),
			listing.Seller.Hex(),
			numericFromDecimal(listing.Price),
			addressStrings(listing.AcceptedTokens),
			int16(listing.Status),
			listing.CreatedAt,
		)
	}
	for _, st := range m.Settlements {
		batch.Queue(`
			INSERT INTO settlements (
				id, listing_id, nft_id, seller, buyer, paid_token, paid_amount_raw, normalized_amount, settled_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`,
			st.ID,
			int64(st.ListingID),
			int64(st.NFTID),
			st.Seller.Hex(),
			st.Buyer.Hex(),
			st.PaidToken.Hex(),
			numericFromBig(st.PaidAmountRaw),
			numericFromDecimal(st.NormalizedAmount),
			st.Timestamp,
		)
	}
	for _, balance := range m.Balances {
		batch.Queue(`
			INSERT INTO vault_balances (token, amount, updated_at)
			VALUES ($1, $2, now())
			ON CONFLICT (token) DO UPDATE SET
				amount = EXCLUDED.amount,
				updated_at = now()
		`, balance.Token.Hex(), numericFromBig(balance.Amount))
	}

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.TableName == "settlements" {
				return fmt.Errorf("%w: %s", storage.ErrAlreadySettled, pgErr.Detail)
			}
			return err
		}
	}
	if err := br.Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Load reads the whole ledger in one read-only transaction.
func (s *Store) Load(ctx context.Context) (model.Snapshot, error) {
	var snap model.Snapshot
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly, IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return snap, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if snap.Collection, err = loadCollection(ctx, tx); err != nil {
		return snap, err
	}
	if snap.NFTs, err = loadNFTs(ctx, tx); err != nil {
		return snap, err
	}
	if snap.Listings, err = loadListings(ctx, tx); err != nil {
		return snap, err
	}
	if snap.Settlements, err = loadSettlements(ctx, tx); err != nil {
		return snap, err
	}
	if snap.Balances, err = loadBalances(ctx, tx); err != nil {
		return snap, err
	}
	return snap, nil
}

func loadCollection(ctx context.Context, tx pgx.Tx) (*model.Collection, error) {
	var (
		owner    string
		mintCost pgtype.Numeric
		state    int16
		next     int64
	)
	row := tx.QueryRow(ctx, `SELECT owner, mint_cost, state, next_token_id FROM collection WHERE id = 1`)
	if err := row.Scan(&owner, &mintCost, &state, &next); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load collection: %w", err)
	}
	cost, err := bigFromNumeric(mintCost)
	if err != nil {
		return nil, fmt.Errorf("collection mint_cost: %w", err)
	}
	return &model.Collection{
		Owner:       common.HexToAddress(owner),
		MintCost:    cost,
		State:       model.LifecycleState(state),
		NextTokenID: uint64(next),
	}, nil
}

func loadNFTs(ctx context.Context, tx pgx.Tx) ([]model.NFT, error) {
	rows, err := tx.Query(ctx, `SELECT token_id, owner, locked_by FROM nfts ORDER BY token_id`)
	if err != nil {
		return nil, fmt.Errorf("load nfts: %w", err)
	}
	defer rows.Close()

	var out []model.NFT
	for rows.Next() {
		var (
			id, lockedBy int64
			owner        string
		)
		if err := rows.Scan(&id, &owner, &lockedBy); err != nil {
			return nil, err
		}
		out = append(out, model.NFT{TokenID: uint64(id), Owner: common.HexToAddress(owner), LockedBy: uint64(lockedBy)})
	}
	return out, rows.Err()
}

func loadListings(ctx context.Context, tx pgx.Tx) ([]model.Listing, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, nft_id, seller, price, accepted_tokens, status, created_at
		FROM listings ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("load listings: %w", err)
	}
	defer rows.Close()

	var out []model.Listing
	for rows.Next() {
		var (
			listing   model.Listing
			id, nftID int64
			seller    string
			price     pgtype.Numeric
			tokens    []string
			status    int16
		)
		if err := rows.Scan(&id, &nftID, &seller, &price, &tokens, &status, &listing.CreatedAt); err != nil {
			return nil, err
		}
		listing.ID = uint64(id)
		listing.NFTID = uint64(nftID)
		listing.Seller = common.HexToAddress(seller)
		if listing.Price, err = decimalFromNumeric(price); err != nil {
			return nil, fmt.Errorf("listing %d price: %w", id, err)
		}
		for _, token := range tokens {
			listing.AcceptedTokens = append(listing.AcceptedTokens, common.HexToAddress(token))
		}
		listing.Status = model.ListingStatus(status)
		listing.CreatedAt = listing.CreatedAt.UTC()
		out = append(out, listing)
	}
	return out, rows.Err()
}

func loadSettlements(ctx context.Context, tx pgx.Tx) ([]model.Settlement, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, listing_id, nft_id, seller, buyer, paid_token, paid_amount_raw, normalized_amount, settled_at
		FROM settlements ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("load settlements: %w", err)
	}
	defer rows.Close()

	var out []model.Settlement
	for rows.Next() {
		var (
			st                   model.Settlement
			listingID, nftID     int64
			seller, buyer, token string
			paid, normalized     pgtype.Numeric
		)
		if err := rows.Scan(&st.ID, &listingID, &nftID, &seller, &buyer, &token, &paid, &normalized, &st.Timestamp); err != nil {
			return nil, err
		}
		st.ListingID = uint64(listingID)
		st.NFTID = uint64(nftID)
		st.Seller = common.HexToAddress(seller)
		st.Buyer = common.HexToAddress(buyer)
		st.PaidToken = common.HexToAddress(token)
		if st.PaidAmountRaw, err = bigFromNumeric(paid); err != nil {
			return nil, fmt.Errorf("settlement %s paid amount: %w", st.ID, err)
		}
		if st.NormalizedAmount, err = decimalFromNumeric(normalized); err != nil {
			return nil, fmt.Errorf("settlement %s normalized amount: %w", st.ID, err)
		}
		st.Timestamp = st.Timestamp.UTC()
		out = append(out, st)
	}
	return out, rows.Err()
}

func loadBalances(ctx context.Context, tx pgx.Tx) ([]model.VaultBalance, error) {
	rows, err := tx.Query(ctx, `SELECT token, amount FROM vault_balances ORDER BY token`)
	if err != nil {
		return nil, fmt.Errorf("load vault balances: %w", err)
	}
	defer rows.Close()

	var out []model.VaultBalance
	for rows.Next() {
		var (
			token  string
			amount pgtype.Numeric
		)
		if err := rows.Scan(&token, &amount); err != nil {
			return nil, err
		}
		value, err := bigFromNumeric(amount)
		if err != nil {
			return nil, fmt.Errorf("vault balance %s: %w", token, err)
		}
		out = append(out, model.VaultBalance{Token: common.HexToAddress(token), Amount: value})
	}
	return out, rows.Err()
}

func addressStrings(addrs []common.Address) []string {
	out := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		out = append(out, addr.Hex())
	}
	return out
}
