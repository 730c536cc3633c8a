package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflows (
				id UUID PRIMARY KEY,
				plan_id VARCHAR(255) NOT NULL,
				analysis_id VARCHAR(255) NOT NULL,
				transcript_id VARCHAR(255) NOT NULL,
				workflow_type VARCHAR(50) NOT NULL CHECK (workflow_type IN ('BORROWER', 'ADVISOR', 'SUPERVISOR', 'LEADERSHIP')),
				workflow_data JSONB NOT NULL,
				risk_level VARCHAR(20) NOT NULL CHECK (risk_level IN ('LOW', 'MEDIUM', 'HIGH')),
				risk_reasoning TEXT,
				status VARCHAR(50) NOT NULL CHECK (status IN ('PENDING_ASSESSMENT', 'AWAITING_APPROVAL', 'AUTO_APPROVED', 'REJECTED', 'EXECUTED')),
				requires_human_approval BOOLEAN NOT NULL DEFAULT false,
				assigned_approver VARCHAR(255),
				approved_by VARCHAR(255),
				approved_at TIMESTAMP WITH TIME ZONE,
				rejected_by VARCHAR(255),
				rejected_at TIMESTAMP WITH TIME ZONE,
				rejection_reason TEXT,
				executed_at TIMESTAMP WITH TIME ZONE,
				execution_results JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflows_plan_id ON workflows(plan_id);
			CREATE INDEX idx_workflows_status ON workflows(status);
			CREATE INDEX idx_workflows_risk_level ON workflows(risk_level);
			CREATE INDEX idx_workflows_type_plan ON workflows(workflow_type, plan_id);

			CREATE TABLE workflow_transitions (
				seq BIGSERIAL PRIMARY KEY,
				id UUID NOT NULL,
				workflow_id UUID NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				from_status VARCHAR(50),
				to_status VARCHAR(50) NOT NULL,
				reason TEXT,
				transitioned_by VARCHAR(255) NOT NULL,
				transitioned_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflow_transitions_workflow_id ON workflow_transitions(workflow_id);

			CREATE TABLE execution_records (
				seq BIGSERIAL PRIMARY KEY,
				id UUID NOT NULL UNIQUE,
				workflow_id UUID NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				step_number INTEGER,
				executor_name VARCHAR(255) NOT NULL,
				payload JSONB,
				execution_status VARCHAR(50) NOT NULL CHECK (execution_status IN ('executed', 'failed', 'partial_failure')),
				executed_at TIMESTAMP WITH TIME ZONE NOT NULL,
				executed_by VARCHAR(255) NOT NULL,
				duration_ns BIGINT NOT NULL DEFAULT 0,
				error_message TEXT
			);

			CREATE INDEX idx_execution_records_workflow_id ON execution_records(workflow_id);
			CREATE INDEX idx_execution_records_executed_at ON execution_records(executed_at);
		`,
	}
}
