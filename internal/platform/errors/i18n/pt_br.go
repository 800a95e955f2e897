package i18n

var ptBRCatalog = &Catalog{
	locale: "pt-BR",
	messages: map[Code]string{
		CodeUnknown: "Ocorreu um erro inesperado",

		// Ledger errors
		CodeLedgerAmountInvalid:     "A quantidade de tokens deve ser um inteiro positivo",
		CodeLedgerDescriptionEmpty:  "A descrição do lançamento não pode ficar vazia",
		CodeLedgerDuplicateEntry:    "Uma movimentação idêntica de tokens foi registrada há instantes",
		CodeLedgerInsufficientFunds: "Saldo insuficiente: saldo {{.Balance}}, necessário {{.Required}}",

		// Escrow/award errors
		CodeEscrowExhausted:  "A caução da atividade tem {{.EscrowBalance}} tokens, o prêmio exige {{.Points}}",
		CodeEscrowClosed:     "A caução da atividade já foi encerrada",
		CodeAwardSelf:        "Você não pode premiar a si mesmo",
		CodeAwardDuplicate:   "Você já concedeu um prêmio {{.AwardType}} na rodada {{.Round}}",
		CodeAwardTypeUnknown: "Tipo de prêmio desconhecido: {{.AwardType}}",

		// Team membership errors
		CodeTeamAlreadyMember: "Você já entrou nesta equipe de revisores",
		CodeTeamFull:          "A equipe de revisores está completa ({{.Limit}} membros)",
		CodeTeamNotAMember:    "Você não faz parte desta equipe de revisores",
		CodeTeamInvalidState:  "O estado {{.Status}} da participação não permite {{.Operation}}",

		// Template errors
		CodeTemplateInvalid:          "O template de fluxo é inválido: {{.Detail}}",
		CodeTemplateUnknownPredicate: "Predicado de condição desconhecido: {{.Predicate}}",
		CodeTemplateNotFound:         "O template de fluxo não foi encontrado",

		// Activity/progression errors
		CodeActivityNotFound:       "A atividade não foi encontrada",
		CodeActivityFundingInvalid: "O valor de financiamento deve ser um inteiro positivo",
		CodeActivitySuspended:      "Esta atividade está suspensa pela moderação",
		CodeInvalidTransition:      "A transição {{.TransitionID}} não está declarada a partir do estágio {{.Stage}}",

		// Paper errors
		CodePaperTitleEmpty: "O título do artigo não pode ficar vazio",

		// Generic errors
		CodeInvalidArgument: "A requisição é inválida",
		CodeUnauthenticated: "A requisição não carrega uma identidade válida",
		CodeNotFound:        "O recurso solicitado não foi encontrado",
		CodeConflict:        "A operação conflitou com uma alteração concorrente, tente novamente",
		CodeIntegrity:       "Uma verificação interna de consistência falhou",
	},
}
