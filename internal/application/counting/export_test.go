package counting

// RequestHashForTest expone el digest del request para los tests de idempotencia.
var RequestHashForTest = requestHash
