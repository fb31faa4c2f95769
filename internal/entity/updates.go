package entity

// UserUpdates 用户更新字段
type UserUpdates struct {
	Username     *string
	Email        *string
	PasswordHash *string
	Organization *string
	IsAdmin      *bool
	IsActive     *bool
}

// ToMap 转换为 GORM 更新 map（内部使用）
func (u UserUpdates) ToMap() map[string]interface{} {
	updates := make(map[string]interface{})
	if u.Username != nil {
		updates["username"] = *u.Username
	}
	if u.Email != nil {
		updates["email"] = *u.Email
	}
	if u.PasswordHash != nil {
		updates["password_hash"] = *u.PasswordHash
	}
	if u.Organization != nil {
		updates["organization"] = *u.Organization
	}
	if u.IsAdmin != nil {
		updates["is_admin"] = *u.IsAdmin
		// role 与 is_admin 保持一致
		if *u.IsAdmin {
			updates["role"] = UserRoleAdmin
		} else {
			updates["role"] = UserRoleUser
		}
	}
	if u.IsActive != nil {
		updates["is_active"] = *u.IsActive
		if *u.IsActive {
			updates["status"] = UserStatusActive
		} else {
			updates["status"] = UserStatusInactive
		}
	}
	return updates
}

// IsEmpty 检查是否没有任何更新字段
func (u UserUpdates) IsEmpty() bool {
	return len(u.ToMap()) == 0
}

// AddressUpdates 地址更新字段
type AddressUpdates struct {
	Name         *string
	PostalCode   *string
	Prefecture   *string
	City         *string
	AddressLine1 *string
	AddressLine2 *string
	Phone        *string
}

// ToMap 转换为 GORM 更新 map（内部使用）
func (u AddressUpdates) ToMap() map[string]interface{} {
	updates := make(map[string]interface{})
	if u.Name != nil {
		updates["name"] = *u.Name
	}
	if u.PostalCode != nil {
		updates["postal_code"] = *u.PostalCode
	}
	if u.Prefecture != nil {
		updates["prefecture"] = *u.Prefecture
	}
	if u.City != nil {
		updates["city"] = *u.City
	}
	if u.AddressLine1 != nil {
		updates["address_line1"] = *u.AddressLine1
	}
	if u.AddressLine2 != nil {
		updates["address_line2"] = *u.AddressLine2
	}
	if u.Phone != nil {
		updates["phone"] = *u.Phone
	}
	return updates
}

// IsEmpty 检查是否没有任何更新字段
func (u AddressUpdates) IsEmpty() bool {
	return len(u.ToMap()) == 0
}
