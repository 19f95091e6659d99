package records

import "strings"

// MaxTitleRows caps the title lookup
const MaxTitleRows = 10000

// TitleFilter narrows the title lookup. Empty fields are ignored; the due
// date range applies only when both ends are set.
type TitleFilter struct {
	Number       string `validate:"omitempty,numeric"`
	Person       string `validate:"omitempty,max=255"`
	Status       string `validate:"omitempty,max=254"`
	Origin       string `validate:"omitempty,max=20"`
	PersonType   string `validate:"omitempty,oneof='Pessoa física' 'Pessoa jurídica'"`
	ContractType string `validate:"omitempty,max=50"`
	DueFrom      string `validate:"omitempty,datetime=2006-01-02"`
	DueTo        string `validate:"omitempty,datetime=2006-01-02"`
}

// AuthorizationFilter narrows the own-resource authorization lookup
type AuthorizationFilter struct {
	From     string `validate:"required,datetime=2006-01-02"`
	To       string `validate:"required,datetime=2006-01-02"`
	Sequence string `validate:"omitempty,numeric"`
}

const titlesBase = `SELECT
    SUBSTR(obter_valor_dominio(710, a.ie_situacao), 1, 254) AS ds_status_titulo,
    a.nr_titulo,
    a.vl_titulo,
    a.vl_saldo_titulo,
    ROUND(obter_dados_titulo_receber(a.nr_titulo, 'R'), 2) AS vl_recebido,
    a.dt_vencimento,
    TRUNC(a.dt_liquidacao) AS dt_liquidacao,
    DECODE(
        a.cd_pessoa_fisica, NULL,
        REGEXP_REPLACE(LPAD(a.cd_cgc, 14), '([0-9]{2})([0-9]{3})([0-9]{3})([0-9]{4})', '\1.\2.\3/\4-'),
        REGEXP_REPLACE(LPAD(obter_dados_pf(a.cd_pessoa_fisica, 'CPF'), 11), '([0-9]{3})([0-9]{3})([0-9]{3})', '\1.\2.\3-')
    ) AS ds_cpf_cnpj,
    SUBSTR(obter_nome_pf_pj(a.cd_pessoa_fisica, a.cd_cgc), 1, 255) AS nm_pessoa,
    a.nr_seq_classe
        || DECODE(a.nr_seq_classe, NULL, NULL, ' - ')
        || SUBSTR(obter_dados_titulo_receber(a.nr_titulo, 'DCL'), 1, 255) AS ds_classificao_titulo,
    a.ie_tipo_titulo
        || DECODE(a.ie_tipo_titulo, NULL, NULL, ' - ')
        || SUBSTR(obter_valor_dominio(712, a.ie_tipo_titulo), 1, 255) AS ds_tipo_titulo,
    a.ie_origem_titulo
        || DECODE(a.ie_origem_titulo, NULL, NULL, ' - ')
        || SUBSTR(obter_valor_dominio(709, a.ie_origem_titulo), 1, 255) AS ds_origem,
    fti_obter_contrato_por_titulo(a.nr_titulo) AS nr_contrato,
    pls_obter_dados_contrato(b.nr_sequencia, 'TC') AS ie_tipo_contratacao
FROM titulo_receber a
LEFT JOIN pls_contrato b ON b.nr_contrato = fti_obter_contrato_por_titulo(a.nr_titulo)
WHERE 1 = 1`

const personTypeExpr = `(CASE
        WHEN a.cd_cgc IS NULL AND a.cd_pessoa_fisica IS NOT NULL THEN 'Pessoa física'
        WHEN a.cd_pessoa_fisica IS NULL AND a.cd_cgc IS NOT NULL THEN 'Pessoa jurídica'
    END)`

func titlesQuery(f TitleFilter) (string, map[string]any) {
	var b strings.Builder
	b.WriteString(titlesBase)
	args := make(map[string]any)

	if f.Number != "" {
		b.WriteString("\n  AND a.nr_titulo = :nr_titulo")
		args["nr_titulo"] = f.Number
	}
	if f.Status != "" {
		b.WriteString("\n  AND SUBSTR(obter_valor_dominio(710, a.ie_situacao), 1, 254) = :status")
		args["status"] = f.Status
	}
	if f.Origin != "" {
		b.WriteString("\n  AND a.ie_origem_titulo = :origem")
		args["origem"] = f.Origin
	}
	if f.ContractType != "" {
		b.WriteString("\n  AND pls_obter_dados_contrato(b.nr_sequencia, 'TC') = :tipo_contratacao")
		args["tipo_contratacao"] = f.ContractType
	}
	if f.PersonType != "" {
		b.WriteString("\n  AND " + personTypeExpr + " = :tipo_pessoa")
		args["tipo_pessoa"] = f.PersonType
	}
	if f.Person != "" {
		b.WriteString("\n  AND (UPPER(obter_nome_pf_pj(a.cd_pessoa_fisica, a.cd_cgc)) LIKE UPPER(:pessoa_nome)" +
			" OR obter_dados_pf(a.cd_pessoa_fisica, 'CPF') LIKE :pessoa_cpf" +
			" OR a.cd_cgc LIKE :pessoa_cgc)")
		like := "%" + f.Person + "%"
		args["pessoa_nome"] = like
		args["pessoa_cpf"] = like
		args["pessoa_cgc"] = like
	}
	if f.DueFrom != "" && f.DueTo != "" {
		b.WriteString("\n  AND a.dt_vencimento BETWEEN TO_DATE(:dt_inicio, 'YYYY-MM-DD') AND TO_DATE(:dt_fim, 'YYYY-MM-DD')")
		args["dt_inicio"] = f.DueFrom
		args["dt_fim"] = f.DueTo
	}

	b.WriteString("\n  AND ROWNUM <= :max_rows")
	args["max_rows"] = MaxTitleRows

	return b.String(), args
}

const authorizationsBase = `SELECT
    a.nr_sequencia,
    SUBSTR(
        NVL(obter_nome_pf_pj(cd_pessoa_fisica, NULL),
            NVL(NVL(obter_pessoa_atendimento(nr_atendimento, 'N'),
                    NVL(obter_nome_paciente_agenda(nr_seq_agenda),
                        NVL(obter_paciente_agenda_consulta(nr_seq_agenda_consulta),
                            obter_paciente_autor_onc(nr_seq_paciente_setor)))),
                obter_paciente_gestao_vagas(nr_seq_gestao, 'N'))),
        1, 254) AS nm_paciente,
    a.nr_atendimento,
    SUBSTR(obter_nome_convenio(cd_convenio), 1, 100) AS ds_convenio,
    SUBSTR(obter_nome_medico(cd_medico_solicitante, 'MAT'), 1, 100) AS nm_medico_solicitante,
    obter_dados_atendimento_DT(a.nr_atendimento, 'DA') AS dt_alta,
    SUBSTR(obter_tipo_atend_autor(a.nr_atendimento, a.nr_seq_agenda, a.nr_seq_agenda_consulta, a.nr_seq_age_integ, a.nr_seq_paciente_setor, 'D'), 1, 50) AS ds_tipo_atendimento,
    SUBSTR(obter_valor_dominio(1031, ie_tipo_guia), 1, 254) AS ds_tipo_guia,
    SUBSTR(obter_descricao_padrao('ESTAGIO_AUTORIZACAO', 'DS_ESTAGIO', nr_seq_estagio), 1, 254) AS ds_estagio,
    SUBSTR(obter_valor_dominio(1377, ie_tipo_autorizacao), 1, 254) AS ds_tipo_autorizacao
FROM autorizacao_convenio a
WHERE a.nr_seq_estagio = 4
  AND a.dt_autorizacao BETWEEN TO_DATE(:dt_inicio, 'YYYY-MM-DD') AND TO_DATE(:dt_fim, 'YYYY-MM-DD')
  AND a.cd_estabelecimento = 1
  AND a.cd_convenio IN (5, 17)
  AND obter_tipo_atendimento(a.nr_atendimento) IN (3)
  AND a.ie_tipo_autorizacao IN (3)`

func authorizationsQuery(f AuthorizationFilter) (string, map[string]any) {
	var b strings.Builder
	b.WriteString(authorizationsBase)
	args := map[string]any{
		"dt_inicio": f.From,
		"dt_fim":    f.To,
	}

	if f.Sequence != "" {
		b.WriteString("\n  AND a.nr_sequencia = :nr_sequencia")
		args["nr_sequencia"] = f.Sequence
	}
	b.WriteString("\nORDER BY a.nr_sequencia DESC")

	return b.String(), args
}
