// Package badger stores the ledger in an embedded Badger database. Every
// commit is a single Badger transaction.
package badger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/vmihailenco/msgpack/v4"
	"go.uber.org/zap"

	"dgnmMarket/internal/model"
	"dgnmMarket/internal/storage"
)

type Store struct {
	db     *badger.DB
	logger *zap.Logger
}

// Open opens or creates the database at path.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("badger path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := badger.DefaultOptions(path).WithLogger(badgerLogger{logger.Sugar()})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger %s: %w", path, err)
	}
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// RunGC reclaims value log space every interval until ctx is done.
func (s *Store) RunGC(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		lsm, vlog := s.db.Size()
		if lsm < 8<<20 && vlog < 32<<20 {
			continue
		}
		err := s.db.RunValueLogGC(0.5)
		if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
			s.logger.Warn("badger value log gc", zap.Int64("lsm", lsm), zap.Int64("vlog", vlog), zap.Error(err))
		}
	}
}

// Commit writes m in one transaction.
func (s *Store) Commit(ctx context.Context, m model.Mutation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if m.Collection != nil {
			if err := setValue(txn, []byte(keyCollection), fromCollection(*m.Collection)); err != nil {
				return err
			}
		}
		for _, nft := range m.NFTs {
			if err := setValue(txn, idKey(prefixNFT, nft.TokenID), fromNFT(nft)); err != nil {
				return err
			}
		}
		for _, listing := range m.Listings {
			if err := setValue(txn, idKey(prefixListing, listing.ID), fromListing(listing)); err != nil {
				return err
			}
		}
		if len(m.Settlements) > 0 {
			seq, err := readCounter(txn)
			if err != nil {
				return err
			}
			for _, settlement := range m.Settlements {
				key := idKey(prefixSettlement, settlement.ListingID)
				_, err := txn.Get(key)
				if err == nil {
					return fmt.Errorf("%w: listing %d", storage.ErrAlreadySettled, settlement.ListingID)
				}
				if !errors.Is(err, badger.ErrKeyNotFound) {
					return err
				}
				seq++
				if err := setValue(txn, key, fromSettlement(seq, settlement)); err != nil {
					return err
				}
			}
			if err := writeCounter(txn, seq); err != nil {
				return err
			}
		}
		for _, balance := range m.Balances {
			rec := balanceRecord{Token: balance.Token.Hex(), Amount: balance.Amount.String()}
			if err := setValue(txn, vaultKey(balance.Token), rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// Load reads the whole ledger.
func (s *Store) Load(ctx context.Context) (model.Snapshot, error) {
	var snap model.Snapshot
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyCollection))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return err
		default:
			var rec collectionRecord
			if err := decodeItem(item, &rec); err != nil {
				return err
			}
			coll, err := rec.model()
			if err != nil {
				return err
			}
			snap.Collection = &coll
		}

		if err := iterate(txn, prefixNFT, func(item *badger.Item) error {
			var rec nftRecord
			if err := decodeItem(item, &rec); err != nil {
				return err
			}
			snap.NFTs = append(snap.NFTs, rec.model())
			return nil
		}); err != nil {
			return err
		}

		if err := iterate(txn, prefixListing, func(item *badger.Item) error {
			var rec listingRecord
			if err := decodeItem(item, &rec); err != nil {
				return err
			}
			listing, err := rec.model()
			if err != nil {
				return err
			}
			snap.Listings = append(snap.Listings, listing)
			return nil
		}); err != nil {
			return err
		}

		var settlements []settlementRecord
		if err := iterate(txn, prefixSettlement, func(item *badger.Item) error {
			if string(item.Key()) == keySettlementCounter {
				return nil
			}
			var rec settlementRecord
			if err := decodeItem(item, &rec); err != nil {
				return err
			}
			settlements = append(settlements, rec)
			return nil
		}); err != nil {
			return err
		}
		sort.Slice(settlements, func(i, j int) bool { return settlements[i].Seq < settlements[j].Seq })
		for _, rec := range settlements {
			settlement, err := rec.model()
			if err != nil {
				return err
			}
			snap.Settlements = append(snap.Settlements, settlement)
		}

		return iterate(txn, prefixVault, func(item *badger.Item) error {
			var rec balanceRecord
			if err := decodeItem(item, &rec); err != nil {
				return err
			}
			balance, err := rec.model()
			if err != nil {
				return err
			}
			snap.Balances = append(snap.Balances, balance)
			return nil
		})
	})
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("load badger ledger: %w", err)
	}
	return snap, nil
}

func setValue(txn *badger.Txn, key []byte, v interface{}) error {
	val, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return txn.Set(key, val)
}

func decodeItem(item *badger.Item, v interface{}) error {
	return item.Value(func(val []byte) error {
		if err := msgpack.Unmarshal(val, v); err != nil {
			return fmt.Errorf("decode %s: %w", item.Key(), err)
		}
		return nil
	})
}

func iterate(txn *badger.Txn, prefix string, fn func(*badger.Item) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(opts.Prefix); it.Valid(); it.Next() {
		if err := fn(it.Item()); err != nil {
			return err
		}
	}
	return nil
}

func readCounter(txn *badger.Txn) (uint64, error) {
	item, err := txn.Get([]byte(keySettlementCounter))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var seq uint64
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("settlement counter: %d bytes", len(val))
		}
		seq = binary.BigEndian.Uint64(val)
		return nil
	})
	return seq, err
}

func writeCounter(txn *badger.Txn, seq uint64) error {
	val := make([]byte, 8)
	binary.BigEndian.PutUint64(val, seq)
	return txn.Set([]byte(keySettlementCounter), val)
}

type badgerLogger struct {
	*zap.SugaredLogger
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.Warnf(format, args...)
}
