package mysql

const insertPackageSQL = `
INSERT INTO packages
  (id, name, destination, resort, description, currency,
   group_size_tiers, duration_options, pricing_matrix,
   status, version, created_by, last_modified_by, created_at, updated_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// Compare-and-swap on version: zero affected rows means the writer lost the
// race or the row is gone; the repo disambiguates with an existence probe.
// The version column always changes on a successful update, so MySQL's
// changed-rows counting cannot report a false conflict.
const updatePackageSQL = `
UPDATE packages SET
  name             = ?,
  destination      = ?,
  resort           = ?,
  description      = ?,
  currency         = ?,
  group_size_tiers = ?,
  duration_options = ?,
  pricing_matrix   = ?,
  status           = ?,
  version          = ?,
  last_modified_by = ?,
  updated_at       = ?
WHERE id = ? AND version = ?
`

const getPackageSQL = `
SELECT
  id, name, destination, resort, description, currency,
  group_size_tiers, duration_options, pricing_matrix,
  status, version, created_by, last_modified_by, created_at, updated_at
FROM packages
WHERE id = ?
`

const existsPackageSQL = `SELECT 1 FROM packages WHERE id = ?`

const insertQuoteSQL = `
INSERT INTO quotes
  (id, enquiry_ref, lead_name, hotel_name, destination, arrival_date,
   nights, people, currency, total_price, price_on_request,
   whats_included, internal_notes, status, version, revision,
   linked_package, price_history, created_by, last_modified_by,
   created_at, updated_at, sent_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// Compare-and-swap on revision, bumped inside the statement itself so every
// committed write moves the token even when the visible fields are equal.
const updateQuoteSQL = `
UPDATE quotes SET
  enquiry_ref      = ?,
  lead_name        = ?,
  hotel_name       = ?,
  destination      = ?,
  arrival_date     = ?,
  nights           = ?,
  people           = ?,
  currency         = ?,
  total_price      = ?,
  price_on_request = ?,
  whats_included   = ?,
  internal_notes   = ?,
  status           = ?,
  version          = ?,
  revision         = revision + 1,
  linked_package   = ?,
  price_history    = ?,
  last_modified_by = ?,
  updated_at       = ?,
  sent_at          = ?
WHERE id = ? AND revision = ?
`

const getQuoteSQL = `
SELECT
  id, enquiry_ref, lead_name, hotel_name, destination, arrival_date,
  nights, people, currency, total_price, price_on_request,
  whats_included, internal_notes, status, version, revision,
  linked_package, price_history, created_by, last_modified_by,
  created_at, updated_at, sent_at
FROM quotes
WHERE id = ?
`

const existsQuoteSQL = `SELECT 1 FROM quotes WHERE id = ?`

// -----------------------------------------------------------------------------
// VERSION HISTORY (append-only)
// -----------------------------------------------------------------------------

const insertHistorySQL = `
INSERT INTO version_history
  (id, entity_type, entity_id, version, snapshot, change_reason, changed_by, created_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?)
`

const listHistorySQL = `
SELECT id, entity_type, entity_id, version, snapshot, change_reason, changed_by, created_at
FROM version_history
WHERE entity_type = ? AND entity_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?
`

// Non-significant edits record several entries per version; the newest one is
// the version's canonical snapshot.
const getHistoryByVersionSQL = `
SELECT id, entity_type, entity_id, version, snapshot, change_reason, changed_by, created_at
FROM version_history
WHERE entity_type = ? AND entity_id = ? AND version = ?
ORDER BY created_at DESC, id DESC
LIMIT 1
`
