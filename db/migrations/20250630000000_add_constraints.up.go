package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {

		if db.Dialect().Name().String() != "pg" {
			fmt.Printf("\033[1;31m%s\033[0m", "You are not using PostgreSQL. DB level checks can not be enabled!\n")
			return nil
		}
		sql := `
			-- one payment row per provider transaction id
				CREATE UNIQUE INDEX payments_provider_transaction_id_idx
				ON payments (provider, transaction_id)
				WHERE transaction_id IS NOT NULL;

				CREATE INDEX payments_provider_session_id_idx
				ON payments (provider, session_id)
				WHERE session_id IS NOT NULL;

			-- one escrow account per project, currency and provider
				ALTER TABLE escrow_accounts
				ADD CONSTRAINT escrow_accounts_project_currency_provider_key
				UNIQUE (project_id, currency, provider);

			-- ledger amounts are positive, the sign is carried by the entry type
				ALTER TABLE escrow_entries
				ADD CONSTRAINT check_entry_amount_positive
				CHECK (amount > 0);

				ALTER TABLE projects
				ADD CONSTRAINT check_current_funding_not_negative
				CHECK (current_funding >= 0);

				ALTER TABLE users
				ADD CONSTRAINT check_total_invested_not_negative
				CHECK (total_invested >= 0);

			-- make sure a release entry can never overdraw its escrow account
				CREATE OR REPLACE FUNCTION check_escrow_balance()
					RETURNS TRIGGER AS $$
				DECLARE
					sum BIGINT;
				BEGIN
					IF NEW.type <> 'release' THEN
						RETURN NEW;
					END IF;

					-- IMPORTANT: lock the account row but do not wait for another lock.
					--   Waiting could deadlock when two transactions draw from the same
					--   account; NOWAIT reports an error instead.
					PERFORM id FROM escrow_accounts
					WHERE id = NEW.account_id
					FOR UPDATE NOWAIT;

					SELECT INTO sum
						COALESCE(SUM(CASE WHEN type = 'deposit' THEN amount ELSE -amount END), 0)
					FROM escrow_entries
					WHERE account_id = NEW.account_id;

					IF sum < 0
					THEN
						RAISE EXCEPTION 'invalid escrow balance [account_id:%] balance [%]',
						NEW.account_id,
						sum;
					END IF;
					RETURN NEW;
				END;
				$$ LANGUAGE plpgsql;
				CREATE TRIGGER check_escrow_balance
				AFTER INSERT ON escrow_entries
				FOR EACH ROW EXECUTE PROCEDURE check_escrow_balance();

			-- escrow entries are append-only
				CREATE OR REPLACE FUNCTION forbid_entry_change()
					RETURNS TRIGGER AS $$
				BEGIN
					RAISE EXCEPTION 'escrow entries are append-only [id:%]', OLD.id;
				END;
				$$ LANGUAGE plpgsql;
				CREATE TRIGGER forbid_entry_change
				BEFORE UPDATE OR DELETE ON escrow_entries
				FOR EACH ROW EXECUTE PROCEDURE forbid_entry_change();
		`
		if _, err := db.Exec(sql); err != nil {
			return err
		}
		return nil
	}, nil)
}
