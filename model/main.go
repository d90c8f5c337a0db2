package model

import "time"

// Ticket statuses used by the producing application. The JSON keys and status
// values are in Portuguese because they are the wire format of the ticket
// application; the notifier only inspects them.
const (
	StatusInTreatment                 = "em_tratativa"
	StatusInExecution                 = "em_execucao"
	StatusAwaitingApproval            = "aguardando_aprovacao"
	StatusApproved                    = "aprovado"
	StatusRejected                    = "rejeitado"
	StatusExecutedAwaitingValidation  = "executado_aguardando_validacao"
	StatusExecutedAwaitingOperatorVal = "executado_aguardando_validacao_operador"
)

// OperatorRolePrefix marks roles belonging to area staff. Tickets created by
// such users are routed back to their creator after execution.
const OperatorRolePrefix = "operador_"

// Ticket represents a snapshot of a ticket document.
type Ticket struct {
	ID            string `json:"id"`
	Title         string `json:"titulo"`
	Description   string `json:"descricao"`
	Area          string `json:"area"`
	Status        string `json:"status"`
	Priority      string `json:"prioridade"`
	ProjectID     string `json:"projetoId"`
	CreatedBy     string `json:"criadoPor"`
	CreatedByName string `json:"criadoPorNome"`
	CreatedByRole string `json:"criadoPorFuncao"`
	Assignee      string `json:"responsavelAtual"`
	OriginArea    string `json:"areaDeOrigem"`
}

// CreatedByOperator reports whether the ticket was created by area staff.
func (t *Ticket) CreatedByOperator() bool {
	return len(t.CreatedByRole) >= len(OperatorRolePrefix) &&
		t.CreatedByRole[:len(OperatorRolePrefix)] == OperatorRolePrefix
}

// Project holds the standing stakeholders notified on most ticket events.
type Project struct {
	ID           string `json:"id"`
	Name         string `json:"nome"`
	ProducerID   string `json:"produtorId"`
	ConsultantID string `json:"consultorId"`
	ManagerID    string `json:"gerenteId"`
}

// User is read-only reference data owned by the user-management subsystem.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"nome"`
	Email string `json:"email"`
	Role  string `json:"funcao"`
	Area  string `json:"area"`
}

// Notification is a single entry in a user's in-app feed. Entries start
// unread; the read flag is one-way and entries are removed only by pruning.
type Notification struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Type        string    `json:"tipo"`
	Title       string    `json:"titulo"`
	Message     string    `json:"mensagem"`
	Link        string    `json:"link"`
	TicketID    string    `json:"ticketId"`
	Read        bool      `json:"lida"`
	TimeCreated time.Time `json:"criadoEm"`
}
