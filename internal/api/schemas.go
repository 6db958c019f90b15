package api

const amountType = `{"type": ["string", "number"]}`

const createAccountSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["name", "type", "subtype"],
  "properties": {
    "name": {"type": "string", "minLength": 1, "maxLength": 255},
    "type": {"type": "string", "enum": ["ASSET", "LIABILITY"]},
    "subtype": {"type": "string", "enum": ["CHECKING", "SAVINGS", "INVESTMENT", "CREDIT", "LOAN"]},
    "currency": {"type": "string", "pattern": "^[A-Z]{3}$"},
    "opening_balance": ` + amountType + `,
    "opening_date": {"type": "string", "format": "date"},
    "credit_limit": {"type": ["string", "number", "null"]},
    "interest_rate": {"type": ["string", "number", "null"]}
  }
}`

const updateAccountSchema = `{
  "type": "object",
  "additionalProperties": false,
  "minProperties": 1,
  "properties": {
    "name": {"type": "string", "minLength": 1, "maxLength": 255},
    "type": {"type": "string", "enum": ["ASSET", "LIABILITY"]},
    "subtype": {"type": "string", "enum": ["CHECKING", "SAVINGS", "INVESTMENT", "CREDIT", "LOAN"]},
    "currency": {"type": "string", "pattern": "^[A-Z]{3}$"},
    "credit_limit": {"type": ["string", "number", "null"]},
    "interest_rate": {"type": ["string", "number", "null"]}
  }
}`

const createEntrySchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["account_id", "effective_date", "amount", "direction"],
  "properties": {
    "account_id": {"type": "string", "minLength": 1},
    "effective_date": {"type": "string", "format": "date"},
    "amount": ` + amountType + `,
    "direction": {"type": "string", "enum": ["in", "out"]},
    "description": {"type": "string", "maxLength": 500},
    "category_id": {"type": "string"}
  }
}`

const updateEntrySchema = `{
  "type": "object",
  "additionalProperties": false,
  "minProperties": 1,
  "properties": {
    "description": {"type": "string", "maxLength": 500},
    "effective_date": {"type": "string", "format": "date"},
    "category_id": {"type": ["string", "null"]},
    "amount": ` + amountType + `,
    "direction": {"type": "string", "enum": ["in", "out"]},
    "account_id": {"type": "string"}
  }
}`

const createTransferSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["from_account_id", "to_account_id", "amount", "effective_date"],
  "properties": {
    "from_account_id": {"type": "string", "minLength": 1},
    "to_account_id": {"type": "string", "minLength": 1},
    "amount": ` + amountType + `,
    "effective_date": {"type": "string", "format": "date"},
    "category_id": {"type": "string"},
    "description": {"type": "string", "maxLength": 500}
  }
}`

const createGroupSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["name", "type"],
  "properties": {
    "name": {"type": "string", "minLength": 1, "maxLength": 100},
    "type": {"type": "string", "enum": ["INCOME", "EXPENSE", "TRANSFER"]}
  }
}`

const createCategorySchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["name", "group_id"],
  "properties": {
    "name": {"type": "string", "minLength": 1, "maxLength": 100},
    "group_id": {"type": "string", "minLength": 1}
  }
}`

const updateCategorySchema = `{
  "type": "object",
  "additionalProperties": false,
  "minProperties": 1,
  "properties": {
    "name": {"type": "string", "minLength": 1, "maxLength": 100},
    "group_id": {"type": "string", "minLength": 1}
  }
}`

const filterSchema = `{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "account_ids": {"type": "array", "items": {"type": "string"}},
    "category_ids": {"type": "array", "items": {"type": "string"}},
    "date_from": {"type": "string", "format": "date"},
    "date_to": {"type": "string", "format": "date"},
    "search": {"type": "string"},
    "transfers_only": {"type": "boolean"},
    "uncategorized_only": {"type": "boolean"},
    "include_reconciled": {"type": "boolean"},
    "direction": {"type": "string", "enum": ["in", "out"]},
    "amount_min": {"type": ["string", "number", "null"]},
    "amount_max": {"type": ["string", "number", "null"]}
  }
}`

const filteredIDsSchema = `{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "filter": ` + filterSchema + `
  }
}`

const bulkReconcileSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["entry_ids", "action"],
  "properties": {
    "entry_ids": {"type": "array", "items": {"type": "string", "minLength": 1}},
    "action": {"type": "string", "enum": ["mark_cleared", "mark_uncleared"]}
  }
}`

const selectionSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["mode"],
  "properties": {
    "mode": {"type": "string", "enum": ["individual", "all_filtered_except"]},
    "ids": {"type": "array", "items": {"type": "string"}},
    "filter": ` + filterSchema + `,
    "excluded": {"type": "array", "items": {"type": "string"}}
  }
}`

const bulkUpdateSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["selection", "changes"],
  "properties": {
    "selection": ` + selectionSchema + `,
    "changes": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "category_id": {"type": ["string", "null"]},
        "reconciliation_status": {"type": "string", "enum": ["unmatched", "manually_cleared", "matched"]}
      }
    }
  }
}`

const selectionCountSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["selection"],
  "properties": {
    "selection": ` + selectionSchema + `
  }
}`
