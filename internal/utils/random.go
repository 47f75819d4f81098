package utils

import (
	crand "crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/rand"
	"strings"

	"github.com/mozillazg/go-pinyin"
	"github.com/sysu-ecnc-dev/job-board/backend/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// GenerateSecureToken returns n random bytes encoded as hex.
func GenerateSecureToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := crand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// HashToken returns the digest stored in place of a raw email token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

var commonSurnames = []string{
	"王", "李", "张", "刘", "陈", "杨", "赵", "黄", "周", "吴",
	"徐", "孙", "胡", "朱", "高", "林", "何", "郭", "马", "罗",
}
var commonNameCharacters = []string{
	"伟", "强", "芳", "敏", "静", "丽", "刚", "杰", "娟", "勇",
	"艳", "涛", "明", "军", "磊", "洋", "勇", "霞", "飞", "玲",
	"超", "华", "平", "辉", "梅", "鑫", "龙", "鹏", "玉", "斌",
	"庆", "建", "丹", "彬", "凤", "旭", "宁", "乐", "成", "欣",
}

func GenerateRandomChineseName() string {
	surname := commonSurnames[rand.Intn(len(commonSurnames))]
	nameLength := rand.Intn(2) + 1
	name := ""

	for i := 0; i < nameLength; i++ {
		name += commonNameCharacters[rand.Intn(len(commonNameCharacters))]
	}
	return surname + name
}

var digits = "0123456789"

func GenerateUsernameFromChineseName(chineseName string) string {
	pinyinArray := pinyin.LazyConvert(chineseName, nil)
	username := ""

	for _, pinyin := range pinyinArray {
		length := rand.Intn(len(pinyin)) + 1
		username += pinyin[:length]
	}

	// 用户名至少 3 个字符
	digitsLength := rand.Intn(3) + 2
	for i := 0; i < digitsLength; i++ {
		username += string(digits[rand.Intn(len(digits))])
	}

	return username
}

func GenerateRandomPhone() string {
	return fmt.Sprintf("1%d%09d", rand.Intn(9)+30, rand.Intn(1000000000))
}

var codingLanguages = []string{"Go", "Python", "Java", "TypeScript", "C++", "Rust", "SQL"}

var companySuffixes = []string{"科技", "网络", "信息", "软件", "数据"}

func GenerateRandomCompanyName() string {
	name := commonNameCharacters[rand.Intn(len(commonNameCharacters))] + commonNameCharacters[rand.Intn(len(commonNameCharacters))]
	return name + companySuffixes[rand.Intn(len(companySuffixes))] + "有限公司"
}

// GenerateRandomUser returns a verified, active user of the given role with a
// hashed password. Job seekers get a profile complete enough to apply.
func GenerateRandomUser(role domain.Role, password string, emailDomainName string) (*domain.User, error) {
	fullName := GenerateRandomChineseName()
	username := GenerateUsernameFromChineseName(fullName)
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Username:      username,
		PasswordHash:  string(passwordHash),
		Email:         strings.ToLower(username + "@" + emailDomainName),
		Role:          role,
		IsApproved:    true,
		EmailVerified: true,
		IsActive:      true,
	}

	switch role {
	case domain.RoleEmployer:
		user.CompanyName = GenerateRandomCompanyName()
		// 约三分之一的雇主仍在等待审核
		user.IsApproved = rand.Intn(3) != 0
	case domain.RoleJobSeeker:
		user.Profile = domain.Profile{
			LegalName: fullName,
			Country:   "China",
			City:      "Guangzhou",
			PhoneCode: "+86",
			Phone:     GenerateRandomPhone(),

			CodingLanguages: GenerateRandomSubset(codingLanguages),
		}
	}

	return user, nil
}

// 使用 Fisher-Yates 洗牌算法来生成一个随机子集
func GenerateRandomSubset[T any](arr []T) []T {
	if len(arr) == 0 {
		return nil
	}
	arrCopy := append([]T{}, arr...) // 复制数组，避免修改原数组

	for i := 0; i < len(arrCopy)-1; i++ {
		j := rand.Intn(len(arrCopy)-i) + i
		arrCopy[i], arrCopy[j] = arrCopy[j], arrCopy[i]
	}

	l := rand.Intn(len(arrCopy)) + 1
	return arrCopy[:l]
}
