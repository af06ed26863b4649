// Package tenant models per-organization settings and loads them from the
// generic key/value settings table.
//
// Settings are stored one row per (org_id, key). Loading starts from a copy
// of the defaults and overwrites the recognized keys found in storage:
//
//	loader := tenant.NewLoader(store, tenant.DefaultSettings())
//	settings, err := loader.Load(ctx, orgID)
//	if err != nil {
//	    return err
//	}
//	if settings.LegalHold {
//	    // nothing may be deleted
//	}
//
// Unknown keys are ignored so older binaries keep working when the admin
// console starts writing new settings.
package tenant
