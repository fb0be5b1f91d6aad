package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Flow definitions. Nodes and edges are stored as documents:
			-- the engine always loads the whole graph and never queries
			-- individual nodes.
			CREATE TABLE flows (
				id UUID PRIMARY KEY,
				tenant_id VARCHAR(255),
				name VARCHAR(255) NOT NULL,
				description TEXT,
				active BOOLEAN NOT NULL DEFAULT false,
				channel JSONB DEFAULT '{}',
				nodes JSONB NOT NULL DEFAULT '[]',
				edges JSONB NOT NULL DEFAULT '[]',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_flows_active ON flows(active);
			CREATE INDEX idx_flows_tenant_id ON flows(tenant_id);
			CREATE INDEX idx_flows_deleted_at ON flows(deleted_at);

			CREATE TABLE debtors (
				id UUID PRIMARY KEY,
				tenant_id VARCHAR(255),
				name VARCHAR(255) NOT NULL,
				phone VARCHAR(64),
				debt_value NUMERIC(14,2) NOT NULL DEFAULT 0,
				score NUMERIC(10,2) NOT NULL DEFAULT 0,
				due_date TIMESTAMP WITH TIME ZONE,
				status VARCHAR(50) NOT NULL,
				last_contact_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_debtors_due_date ON debtors(due_date);
			CREATE INDEX idx_debtors_status ON debtors(status);
			CREATE INDEX idx_debtors_last_contact_at ON debtors(last_contact_at);

			CREATE TABLE executions (
				id UUID PRIMARY KEY,
				flow_id UUID NOT NULL REFERENCES flows(id),
				debtor_id UUID NOT NULL REFERENCES debtors(id),
				status VARCHAR(50) NOT NULL,
				current_node_id VARCHAR(255) NOT NULL,
				log JSONB NOT NULL DEFAULT '[]',
				next_run_at TIMESTAMP WITH TIME ZONE,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE,
				error_message TEXT,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_executions_flow_id ON executions(flow_id);
			CREATE INDEX idx_executions_debtor_id ON executions(debtor_id);
			CREATE INDEX idx_executions_status ON executions(status);
			CREATE INDEX idx_executions_next_run_at ON executions(next_run_at);

			-- At most one running or waiting execution per (flow, debtor)
			-- pair. The conditional insert in CreateIfVacant enforces the
			-- same rule; this index is the database-level backstop for it.
			CREATE UNIQUE INDEX idx_executions_active_slot
				ON executions(flow_id, debtor_id)
				WHERE status IN ('running', 'waiting');
		`,
	}
}
