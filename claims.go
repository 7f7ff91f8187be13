package authcore

import (
	"strconv"

	gjwt "github.com/golang-jwt/jwt/v5"

	"github.com/MrEthical07/authcore/jwt"
)

func claimsFor(acct UserAccount) jwt.Claims {
	return jwt.Claims{
		Name:           acct.Username,
		AuthorityLevel: strconv.Itoa(acct.AuthorityLevel),
		IdentityNumber: strconv.FormatInt(acct.IdentityNumber, 10),
		RegisteredClaims: gjwt.RegisteredClaims{
			Subject: acct.Username,
		},
	}
}
