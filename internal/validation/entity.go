package validation

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// EntityTypePattern задает допустимое имя типа сущности (и таблицы в локальном хранилище)
// Начинается с буквы, далее буквы и цифры, например "orders" или "exchangeRates"
var EntityTypePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9]{0,63}$`)

// EntityIDPattern задает допустимый идентификатор сущности в URL и ключах хранилища
var EntityIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_.:-]{1,128}$`)

// ValidateEntityType проверяет имя типа сущности
func ValidateEntityType(entityType string) error {
	if entityType == "" {
		return fmt.Errorf("entity type cannot be empty")
	}
	if !EntityTypePattern.MatchString(entityType) {
		return fmt.Errorf("entity type %q must start with a letter and contain only letters and digits", entityType)
	}
	return nil
}

// ValidateEntityID проверяет идентификатор сущности
func ValidateEntityID(id string) error {
	if id == "" {
		return fmt.Errorf("entity id cannot be empty")
	}
	if !EntityIDPattern.MatchString(id) {
		return fmt.Errorf("entity id %q contains unsupported characters", id)
	}
	return nil
}

// ValidatePayload проверяет, что тело сущности является JSON объектом
func ValidatePayload(payload []byte) error {
	if len(payload) == 0 {
		return fmt.Errorf("payload cannot be empty")
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(payload, &obj); err != nil || obj == nil {
		return fmt.Errorf("payload must be a JSON object")
	}
	return nil
}
