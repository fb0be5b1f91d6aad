package sqlite

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE flows (
				id TEXT PRIMARY KEY,
				tenant_id TEXT,
				name TEXT NOT NULL,
				description TEXT,
				active BOOLEAN NOT NULL DEFAULT 0,
				channel TEXT DEFAULT '{}',
				nodes TEXT NOT NULL DEFAULT '[]',
				edges TEXT NOT NULL DEFAULT '[]',
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL,
				deleted_at TIMESTAMP
			);

			CREATE INDEX idx_flows_active ON flows(active);

			CREATE TABLE debtors (
				id TEXT PRIMARY KEY,
				tenant_id TEXT,
				name TEXT NOT NULL,
				phone TEXT,
				debt_value REAL NOT NULL DEFAULT 0,
				score REAL NOT NULL DEFAULT 0,
				due_date TIMESTAMP,
				status TEXT NOT NULL,
				last_contact_at TIMESTAMP,
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL
			);

			CREATE INDEX idx_debtors_due_date ON debtors(due_date);
			CREATE INDEX idx_debtors_status ON debtors(status);

			CREATE TABLE executions (
				id TEXT PRIMARY KEY,
				flow_id TEXT NOT NULL REFERENCES flows(id),
				debtor_id TEXT NOT NULL REFERENCES debtors(id),
				status TEXT NOT NULL,
				current_node_id TEXT NOT NULL,
				log TEXT NOT NULL DEFAULT '[]',
				next_run_at TIMESTAMP,
				started_at TIMESTAMP NOT NULL,
				completed_at TIMESTAMP,
				error_message TEXT,
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL
			);

			CREATE INDEX idx_executions_flow_id ON executions(flow_id);
			CREATE INDEX idx_executions_status ON executions(status);
			CREATE INDEX idx_executions_next_run_at ON executions(next_run_at);

			CREATE UNIQUE INDEX idx_executions_active_slot
				ON executions(flow_id, debtor_id)
				WHERE status IN ('running', 'waiting');
		`,
	}
}
